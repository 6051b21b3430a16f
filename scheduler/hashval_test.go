package scheduler

import (
	"reflect"
	"testing"
)

func TestHashvalIPv4(t *testing.T) {
	got := Hashval("192.0.2.137")
	if want := "192.0.2.0/24"; got != want {
		t.Fatalf("Hashval(192.0.2.137) = %q, want %q", got, want)
	}
}

func TestHashvalIPv6(t *testing.T) {
	got := Hashval("2001:db8::1")
	if want := "2001:db8::/48"; got != want {
		t.Fatalf("Hashval(2001:db8::1) = %q, want %q", got, want)
	}
}

func TestHashvalHostname(t *testing.T) {
	got := Hashval("example.com")
	if want := "example.com"; got != want {
		t.Fatalf("Hashval(example.com) = %q, want %q", got, want)
	}
}

func TestEnumerateNetworkSingleAddress(t *testing.T) {
	got, err := EnumerateNetwork("192.0.2.5/32")
	if err != nil {
		t.Fatalf("EnumerateNetwork: %v", err)
	}
	want := []string{"192.0.2.5"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("EnumerateNetwork(/32) = %v, want %v", got, want)
	}
}

func TestEnumerateNetworkPointToPoint(t *testing.T) {
	got, err := EnumerateNetwork("192.0.2.4/31")
	if err != nil {
		t.Fatalf("EnumerateNetwork: %v", err)
	}
	want := []string{"192.0.2.4", "192.0.2.5"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("EnumerateNetwork(/31) = %v, want %v", got, want)
	}
}

func TestEnumerateNetworkSmallSubnet(t *testing.T) {
	got, err := EnumerateNetwork("192.0.2.0/30")
	if err != nil {
		t.Fatalf("EnumerateNetwork: %v", err)
	}
	want := []string{"192.0.2.0", "192.0.2.1", "192.0.2.2", "192.0.2.3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("EnumerateNetwork(/30) = %v, want %v", got, want)
	}
}

func TestEnumerateNetworkBareAddress(t *testing.T) {
	got, err := EnumerateNetwork("192.0.2.9")
	if err != nil {
		t.Fatalf("EnumerateNetwork: %v", err)
	}
	want := []string{"192.0.2.9"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("EnumerateNetwork(bare) = %v, want %v", got, want)
	}
}
