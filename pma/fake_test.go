package pma

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeService is an in-memory imaging service. Directory and slide paths are
// stored without leading or trailing slashes.
type fakeService struct {
	lite bool

	mu        sync.Mutex
	roots     []string
	dirs      map[string][]string
	files     map[string][]string
	docs      map[string]map[string]any
	failTiles map[image.Point]bool

	// infoGate, when set before start, holds every GetImageInfo response
	// until it is closed.
	infoGate chan struct{}

	infoCalls   atomic.Int32
	tileCalls   atomic.Int32
	deauthCalls atomic.Int32
	lastTile    atomic.Value
}

func newFakeService() *fakeService {
	return &fakeService{
		roots: []string{"/A", "/C"},
		dirs: map[string][]string{
			"":    {},
			"A":   {"/A/B"},
			"A/B": {},
			"C":   {},
		},
		files: map[string][]string{
			"":    {},
			"A":   {},
			"A/B": {"A/B/slide1.svs", "A/B/small.svs"},
			"C":   {},
		},
		docs: map[string]map[string]any{
			"A/B/slide1.svs": {
				"Width":                100000,
				"Height":               80000,
				"TileSize":             256,
				"MaxZoomLevel":         9,
				"MicrometresPerPixelX": 0.25,
				"MicrometresPerPixelY": 0.25,
			},
			"A/B/small.svs": {
				"Width":                600,
				"Height":               300,
				"TileSize":             256,
				"MaxZoomLevel":         2,
				"MicrometresPerPixelX": 0.5,
				"MicrometresPerPixelY": 0.5,
			},
			"A/B/nompp.svs": {
				"Width":        1000,
				"Height":       1000,
				"TileSize":     256,
				"MaxZoomLevel": 3,
			},
		},
		failTiles: map[image.Point]bool{},
	}
}

// start serves f until the test ends.
func (f *fakeService) start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch r.URL.Path {
	case "/api/xml/IsLite":
		writeXML(w, fmt.Sprintf(`<boolean>%t</boolean>`, f.lite))
	case "/api/xml/GetVersionInfo":
		writeXML(w, `<string xmlns="http://www.pathomation.com/">3.0.1.1234</string>`)
	case "/api/xml/authenticate":
		if q.Get("caller") != Caller {
			http.Error(w, "missing caller", http.StatusBadRequest)
			return
		}
		if q.Get("username") == "alice" && q.Get("password") == "s3cret pw" {
			writeXML(w, `<LogonResponse><Success>true</Success><SessionId>abc123</SessionId></LogonResponse>`)
			return
		}
		writeXML(w, `<LogonResponse><Success>false</Success><Reason>Invalid credentials</Reason></LogonResponse>`)
	case "/api/xml/DeAuthenticate":
		f.deauthCalls.Add(1)
		writeXML(w, `<boolean>true</boolean>`)
	case "/api/xml/GetRootDirectories":
		writeXML(w, stringArray(f.roots))
	case "/api/xml/GetUID":
		if _, ok := f.doc(q.Get("path")); !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeXML(w, stringArray([]string{"UID-" + strings.ToUpper(strings.Trim(q.Get("path"), "/"))}))
	case "/api/json/GetDirectories":
		f.mu.Lock()
		dirs, ok := f.dirs[strings.Trim(q.Get("path"), "/")]
		f.mu.Unlock()
		if !ok {
			writeRemoteError(w, "Directory not found")
			return
		}
		writeJSON(w, dirs)
	case "/api/json/GetFiles":
		f.mu.Lock()
		files, ok := f.files[strings.Trim(q.Get("path"), "/")]
		f.mu.Unlock()
		if !ok {
			writeRemoteError(w, "Directory not found")
			return
		}
		writeJSON(w, map[string]any{"d": files})
	case "/api/json/GetImageInfo":
		f.infoCalls.Add(1)
		if f.infoGate != nil {
			<-f.infoGate
		}
		doc, ok := f.doc(q.Get("pathOrUid"))
		if !ok {
			writeRemoteError(w, "Slide not found")
			return
		}
		writeJSON(w, map[string]any{"d": doc})
	case "/tile":
		f.tileCalls.Add(1)
		f.lastTile.Store(q)
		x, _ := strconv.Atoi(q.Get("x"))
		y, _ := strconv.Atoi(q.Get("y"))
		f.mu.Lock()
		fail := f.failTiles[image.Pt(x, y)]
		f.mu.Unlock()
		if fail {
			http.Error(w, "tile rendering failed", http.StatusInternalServerError)
			return
		}
		writePNG(w, tileColor(x, y))
	case "/thumbnail", "/barcode":
		if _, ok := f.doc(q.Get("pathOrUid")); !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writePNG(w, color.NRGBA{R: 200, G: 100, B: 150, A: 255})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeService) doc(ref string) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[strings.TrimPrefix(ref, "/")]
	return doc, ok
}

func (f *fakeService) addDoc(ref string, doc map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[ref] = doc
}

func (f *fakeService) failTile(x, y int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failTiles[image.Pt(x, y)] = true
}

// tileColor encodes a tile position into its pixels.
func tileColor(x, y int) color.NRGBA {
	return color.NRGBA{R: uint8(x), G: uint8(y), B: 7, A: 255}
}

func tilePosition(img image.Image) (int, int) {
	r, g, _, _ := img.At(0, 0).RGBA()
	return int(r >> 8), int(g >> 8)
}

func writeXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprint(w, `<?xml version="1.0" encoding="utf-8"?>`+body)
}

func stringArray(values []string) string {
	var b strings.Builder
	b.WriteString(`<ArrayOfString xmlns="http://www.pathomation.com/">`)
	for _, v := range values {
		b.WriteString("<string>" + v + "</string>")
	}
	b.WriteString("</ArrayOfString>")
	return b.String()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeRemoteError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]any{"Code": "NotFound", "Message": message})
}

func writePNG(w http.ResponseWriter, c color.NRGBA) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
