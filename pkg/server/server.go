// Package server exposes a mounted volume over HTTP.
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	pz "github.com/weberc2/httpeasy"
	"github.com/weberc2/sanicfs/pkg/fs"
	"github.com/weberc2/sanicfs/pkg/types"
)

// Server serializes every request through one lock because a
// `fs.FileSystem` is not safe for concurrent use.
type Server struct {
	lock sync.Mutex
	fs   *fs.FileSystem
}

func New(filesystem *fs.FileSystem) *Server { return &Server{fs: filesystem} }

func (s *Server) Routes() []pz.Route {
	return []pz.Route{
		s.ListFilesRoute(),
		s.GetFileRoute(),
		s.PutFileRoute(),
		s.DeleteFileRoute(),
		s.CheckRoute(),
	}
}

type logging struct {
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Bytes     int    `json:"bytes,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleError maps file system errors to HTTP statuses.
func handleError(message string, file string, err error) pz.Response {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrAlreadyExists),
		errors.Is(err, types.ErrFileOpen):
		status = http.StatusConflict
	case errors.Is(err, types.ErrInvalidName),
		errors.Is(err, types.ErrNameTooLong):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrDirectoryFull),
		errors.Is(err, types.ErrDiskFull):
		status = http.StatusInsufficientStorage
	case errors.Is(err, types.ErrTooManyOpen):
		status = http.StatusServiceUnavailable
	}
	public := http.StatusText(status)
	if status != http.StatusInternalServerError {
		public = err.Error()
	}
	return pz.HandleError(
		message,
		&pz.HTTPError{Status: status, Message: public},
		&logging{
			Message:   message,
			File:      file,
			ErrorType: fmt.Sprintf("%T", err),
			Error:     err.Error(),
		},
	)
}

func (s *Server) ListFilesRoute() pz.Route {
	return pz.Route{
		Path:   "/files",
		Method: "GET",
		Handler: func(r pz.Request) pz.Response {
			s.lock.Lock()
			defer s.lock.Unlock()

			files, err := s.fs.Files()
			if err != nil {
				return handleError("listing files", "", err)
			}
			return pz.Ok(pz.JSON(files), &logging{Message: "listed files"})
		},
	}
}

func (s *Server) GetFileRoute() pz.Route {
	return pz.Route{
		Path:   "/files/{name}",
		Method: "GET",
		Handler: func(r pz.Request) pz.Response {
			name := r.Vars["name"]
			s.lock.Lock()
			defer s.lock.Unlock()

			f, err := s.fs.OpenFile(name)
			if err != nil {
				return handleError("reading file", name, err)
			}
			data, err := io.ReadAll(f)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return handleError("reading file", name, err)
			}
			return pz.Ok(pz.String(string(data)), &logging{
				Message: "read file",
				File:    name,
				Bytes:   len(data),
			})
		},
	}
}

// PutFileRoute replaces the contents of a file, creating it if needed. Bodies
// larger than the volume can hold are rejected before anything is written.
func (s *Server) PutFileRoute() pz.Route {
	return pz.Route{
		Path:   "/files/{name}",
		Method: "PUT",
		Handler: func(r pz.Request) pz.Response {
			name := r.Vars["name"]
			s.lock.Lock()
			defer s.lock.Unlock()

			capacity, err := s.fs.Capacity()
			if err != nil {
				return handleError("writing file", name, err)
			}
			data, err := io.ReadAll(io.LimitReader(r.Body, int64(capacity)+1))
			if err != nil {
				return pz.BadRequest(nil, &logging{
					Message: "reading request body",
					File:    name,
					Error:   err.Error(),
				})
			}
			if types.Byte(len(data)) > capacity {
				message := fmt.Sprintf(
					"body exceeds the volume capacity of `%d` bytes",
					capacity,
				)
				return pz.HandleError(
					"writing file",
					&pz.HTTPError{
						Status:  http.StatusRequestEntityTooLarge,
						Message: message,
					},
					&logging{Message: "body too large", File: name},
				)
			}

			created := false
			if err := s.fs.Create(name); err == nil {
				created = true
			} else if !errors.Is(err, types.ErrAlreadyExists) {
				return handleError("creating file", name, err)
			}

			f, err := s.fs.OpenFile(name)
			if err != nil {
				return handleError("opening file", name, err)
			}
			err = f.Truncate(0)
			if err == nil {
				_, err = f.Write(data)
			}
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return handleError("writing file", name, err)
			}

			l := logging{Message: "wrote file", File: name, Bytes: len(data)}
			if created {
				return pz.Created(pz.String("Created file"), &l)
			}
			return pz.Ok(pz.String("Updated file"), &l)
		},
	}
}

func (s *Server) DeleteFileRoute() pz.Route {
	return pz.Route{
		Path:   "/files/{name}",
		Method: "DELETE",
		Handler: func(r pz.Request) pz.Response {
			name := r.Vars["name"]
			s.lock.Lock()
			defer s.lock.Unlock()

			if err := s.fs.Delete(name); err != nil {
				return handleError("deleting file", name, err)
			}
			return pz.Ok(pz.String("Deleted file"), &logging{
				Message: "deleted file",
				File:    name,
			})
		},
	}
}

func (s *Server) CheckRoute() pz.Route {
	return pz.Route{
		Path:   "/check",
		Method: "GET",
		Handler: func(r pz.Request) pz.Response {
			s.lock.Lock()
			defer s.lock.Unlock()

			report, err := s.fs.Check()
			if err != nil {
				return handleError("checking volume", "", err)
			}
			return pz.Ok(pz.JSON(&report), &logging{Message: "checked volume"})
		},
	}
}
