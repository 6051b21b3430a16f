package scheduler

import (
	"bufio"
	"net"
	"os"
	"regexp"
	"strings"

	"github.com/golang/glog"
)

// ExclMatcher is the pure blacklist predicate spec §4.5's job_assign loop
// consults before counting a popped target toward group_size (S6 in
// spec §8). Each non-blank, non-comment line of the source file is either a
// CIDR network or a single address (matched by containment) or a regular
// expression (matched against the raw target string), mirroring the exclusion lists the
// original scheduler loads from its SNER_EXCLUSIONS source.
type ExclMatcher struct {
	networks []*net.IPNet
	patterns []*regexp.Regexp
}

// NewExclMatcher loads path (cmn.BlacklistConf.SourcePath); an empty path or
// a missing file yields a matcher that excludes nothing, the same default
// posture as an unset exclusion list.
func NewExclMatcher(path string) *ExclMatcher {
	m := &ExclMatcher{}
	if path == "" {
		return m
	}

	f, err := os.Open(path)
	if err != nil {
		glog.Warningf("blacklist: failed to open %s: %v", path, err)
		return m
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, network, err := net.ParseCIDR(line); err == nil {
			m.networks = append(m.networks, network)
			continue
		}
		if ip := net.ParseIP(line); ip != nil {
			bits := 128
			if v4 := ip.To4(); v4 != nil {
				ip, bits = v4, 32
			}
			m.networks = append(m.networks, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		if re, err := regexp.Compile(line); err == nil {
			m.patterns = append(m.patterns, re)
			continue
		}
		glog.Warningf("blacklist: ignoring unparseable line %q", line)
	}
	return m
}

// Match reports whether target falls under any loaded network or pattern.
func (m *ExclMatcher) Match(target string) bool {
	if ip := net.ParseIP(target); ip != nil {
		for _, n := range m.networks {
			if n.Contains(ip) {
				return true
			}
		}
	}
	for _, re := range m.patterns {
		if re.MatchString(target) {
			return true
		}
	}
	return false
}
