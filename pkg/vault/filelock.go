package vault

import (
	"os"
	"path/filepath"
)

// fileLock is an exclusive advisory lock on a sidecar file. It serialises
// load-mutate-save sequences between processes sharing one store.
type fileLock struct {
	f *os.File
}

func acquireFileLock(path string) (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return nil, ioError("create lock directory", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, FileMode)
	if err != nil {
		return nil, ioError("open lock file", err)
	}
	if err := lockFD(f); err != nil {
		f.Close()
		return nil, ioError("acquire lock", err)
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) release() error {
	if l == nil || l.f == nil {
		return nil
	}
	unlockErr := unlockFD(l.f)
	closeErr := l.f.Close()
	l.f = nil
	if unlockErr != nil {
		return ioError("release lock", unlockErr)
	}
	if closeErr != nil {
		return ioError("close lock file", closeErr)
	}
	return nil
}
