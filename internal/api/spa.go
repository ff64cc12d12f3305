package api

import (
	"net/http"
	"os"
)

// spaFileSystem serves index.html for paths that are not files so the
// client router can take over /station/s04 and friends.
type spaFileSystem struct {
	root http.FileSystem
}

func (s *spaFileSystem) Open(name string) (http.File, error) {
	f, err := s.root.Open(name)
	if os.IsNotExist(err) {
		return s.root.Open("index.html")
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}
