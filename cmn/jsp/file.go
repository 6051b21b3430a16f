// Package jsp provides atomic, write-once persistence of raw bytes to the
// local filesystem: write to a sibling temp file, fsync, then rename over
// the final path. This is the primitive JobManager.finish and the local
// output.Store back end build on so that a crash between write and commit
// never leaves a half-written job output file.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package jsp

import (
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang/glog"
)

func randSuffix() int64 { return rand.Int63() }

// SaveBytes atomically (create-or-overwrite) writes data to path. The
// parent directory is created if missing, matching the teacher's own
// mkdir-then-write sequencing in JobManager.finish.
func SaveBytes(path string, data []byte) (err error) {
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp." + strconv.FormatInt(int64(os.Getpid()), 10) + "." + strconv.FormatInt(randSuffix(), 10)
	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			glog.Errorf("failed to write %s: %v", path, err)
			if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
				glog.Errorf("nested (%v): failed to remove %s: %v", err, tmp, rmErr)
			}
		}
	}()

	if _, err = file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err = file.Sync(); err != nil {
		file.Close()
		return err
	}
	if err = file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// RemoveIfExists unlinks path, treating an already-absent file as success
// (JobManager.delete must be idempotent with respect to the output file).
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
