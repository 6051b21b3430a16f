package output

import (
	"github.com/sner/scheduler/cmn/jsp"
)

// LocalStore is the default backend: it writes directly to
// <dataAbspath>/<jobID> on the local filesystem, exactly as spec §4.4/§6
// describe, using the teacher's atomic temp-file-then-rename idiom
// (cmn/jsp.SaveBytes).
type LocalStore struct{}

func NewLocalStore() *LocalStore { return &LocalStore{} }

func (s *LocalStore) Write(dataAbspath, jobID string, data []byte) error {
	return jsp.SaveBytes(outputPath(dataAbspath, jobID), data)
}

func (s *LocalStore) Remove(dataAbspath, jobID string) error {
	return jsp.RemoveIfExists(outputPath(dataAbspath, jobID))
}
