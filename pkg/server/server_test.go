package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	pz "github.com/weberc2/httpeasy"
	pztest "github.com/weberc2/httpeasy/testsupport"
	"github.com/weberc2/sanicfs/pkg/device"
	"github.com/weberc2/sanicfs/pkg/directory"
	"github.com/weberc2/sanicfs/pkg/fs"
)

func newServer(t *testing.T) (*Server, *fs.FileSystem) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	filesystem := fs.New(&fs.Params{
		Device: device.NewMemory(device.Geometry{BlockSize: 66, Blocks: 512}),
		Logger: logger,
	})
	if err := filesystem.Make("vol"); err != nil {
		t.Fatalf("Make(): unexpected err: %v", err)
	}
	if err := filesystem.Mount("vol"); err != nil {
		t.Fatalf("Mount(): unexpected err: %v", err)
	}
	return New(filesystem), filesystem
}

func call(
	t *testing.T,
	route pz.Route,
	name string,
	body string,
	wantedStatus int,
) []byte {
	t.Helper()
	rsp := route.Handler(pz.Request{
		Vars: map[string]string{"name": name},
		Body: strings.NewReader(body),
	})
	if rsp.Status != wantedStatus {
		data, err := json.Marshal(rsp.Logging)
		if err != nil {
			t.Logf("marshaling response logging: %v", err)
		}
		t.Logf("response logging: %s", data)
		t.Fatalf(
			"%s %s: wanted `%d`; found `%d`",
			route.Method,
			route.Path,
			wantedStatus,
			rsp.Status,
		)
	}
	if rsp.Data == nil {
		return nil
	}
	data, err := pztest.ReadAll(rsp.Data)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return data
}

func TestFileRoutes(t *testing.T) {
	s, _ := newServer(t)

	call(t, s.GetFileRoute(), "notes", "", http.StatusNotFound)
	call(t, s.PutFileRoute(), "notes", "hello world", http.StatusCreated)

	if found := call(t, s.GetFileRoute(), "notes", "", http.StatusOK); string(found) != "hello world" {
		t.Fatalf("GET /files/notes: wanted `hello world`; found `%s`", found)
	}

	// replacing shrinks the file
	call(t, s.PutFileRoute(), "notes", "bye", http.StatusOK)
	if found := call(t, s.GetFileRoute(), "notes", "", http.StatusOK); string(found) != "bye" {
		t.Fatalf("GET /files/notes: wanted `bye`; found `%s`", found)
	}

	var files []directory.Entry
	if err := json.Unmarshal(
		call(t, s.ListFilesRoute(), "", "", http.StatusOK),
		&files,
	); err != nil {
		t.Fatalf("unmarshaling file list: %v", err)
	}
	if len(files) != 1 || files[0].Name != "notes" || files[0].Size != 3 {
		t.Fatalf("GET /files: wanted `notes` of size `3`; found `%+v`", files)
	}

	call(t, s.PutFileRoute(), strings.Repeat("x", 16), "", http.StatusBadRequest)
	call(t, s.DeleteFileRoute(), "notes", "", http.StatusOK)
	call(t, s.DeleteFileRoute(), "notes", "", http.StatusNotFound)
}

func TestDeleteOpenFile(t *testing.T) {
	s, filesystem := newServer(t)
	call(t, s.PutFileRoute(), "busy", "data", http.StatusCreated)

	fd, err := filesystem.Open("busy")
	if err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	call(t, s.DeleteFileRoute(), "busy", "", http.StatusConflict)

	if err := filesystem.Close(fd); err != nil {
		t.Fatalf("Close(): unexpected err: %v", err)
	}
	call(t, s.DeleteFileRoute(), "busy", "", http.StatusOK)
}

func TestCheckRoute(t *testing.T) {
	s, _ := newServer(t)
	call(t, s.PutFileRoute(), "a", strings.Repeat("a", 1000), http.StatusCreated)

	var report fs.Report
	if err := json.Unmarshal(
		call(t, s.CheckRoute(), "", "", http.StatusOK),
		&report,
	); err != nil {
		t.Fatalf("unmarshaling report: %v", err)
	}
	if !report.OK() || report.FileBlocks != 16 {
		t.Fatalf("GET /check: wanted a clean report with `16` file blocks; found `%+v`", report)
	}
}

func TestRoutes_Unmounted(t *testing.T) {
	s, filesystem := newServer(t)
	if err := filesystem.Unmount("vol"); err != nil {
		t.Fatalf("Unmount(): unexpected err: %v", err)
	}
	call(t, s.ListFilesRoute(), "", "", http.StatusInternalServerError)
}

func TestPutFile_TooLarge(t *testing.T) {
	s, filesystem := newServer(t)

	// 488 data blocks of 64-byte payloads
	capacity := 488 * 64
	call(
		t,
		s.PutFileRoute(),
		"big",
		strings.Repeat("b", capacity+1),
		http.StatusRequestEntityTooLarge,
	)
	files, err := filesystem.Files()
	if err != nil {
		t.Fatalf("Files(): unexpected err: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("Files(): wanted no files after a rejected upload; found `%+v`", files)
	}

	call(t, s.PutFileRoute(), "big", strings.Repeat("b", capacity), http.StatusCreated)
	found := call(t, s.GetFileRoute(), "big", "", http.StatusOK)
	if len(found) != capacity {
		t.Fatalf("GET /files/big: wanted `%d` bytes; found `%d`", capacity, len(found))
	}
}
