package export

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/iconshelf/internal/icon"
	"github.com/JakeFAU/iconshelf/internal/progress"
	"github.com/JakeFAU/iconshelf/internal/status"
)

const squareSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="18" height="18" viewBox="0 0 18 18">` +
	`<rect x="0" y="0" width="18" height="18" fill="#0078d4"/></svg>`

type fakeFetcher struct {
	mu     sync.Mutex
	assets map[string][]byte
	fail   map[string]bool
	calls  int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{assets: map[string][]byte{}, fail: map[string]bool{}}
}

func (f *fakeFetcher) FetchAsset(_ context.Context, rec icon.Record) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[rec.RelativePath] {
		return nil, &icon.FetchError{Path: rec.RelativePath, StatusCode: 404}
	}
	data, ok := f.assets[rec.RelativePath]
	if !ok {
		return []byte(squareSVG), nil
	}
	return data, nil
}

type capturedFile struct {
	data     []byte
	filename string
	mime     string
}

type captureDownloader struct {
	files []capturedFile
	err   error
}

func (c *captureDownloader) TriggerDownload(_ context.Context, data []byte, filename, mime string) error {
	if c.err != nil {
		return c.err
	}
	c.files = append(c.files, capturedFile{data: data, filename: filename, mime: mime})
	return nil
}

type recordedPost struct {
	kind status.Kind
	text string
}

type recordingNotifier struct {
	mu    sync.Mutex
	posts []recordedPost
}

func (n *recordingNotifier) Post(kind status.Kind, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.posts = append(n.posts, recordedPost{kind: kind, text: text})
}

func (n *recordingNotifier) last() recordedPost {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.posts) == 0 {
		return recordedPost{}
	}
	return n.posts[len(n.posts)-1]
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *recordingEmitter) Emit(evt progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *recordingEmitter) stages() []progress.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]progress.Stage, 0, len(e.events))
	for _, evt := range e.events {
		out = append(out, evt.Stage)
	}
	return out
}

func makeRecords(n int) []icon.Record {
	out := make([]icon.Record, 0, n)
	for i := range n {
		out = append(out, icon.NewRecord("compute", fmt.Sprintf("%05d-icon-service-Thing-%d.svg", i, i)))
	}
	return out
}

var errDownload = errors.New("disk full")
