package browser

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	maxHARBodyBytes = 100 * 1024
	maxHAREntries   = 500
)

// textLikeMimes are the response types whose bodies are worth keeping
// in the HAR for downstream pattern scanning.
var textLikeMimes = []string{
	"text/", "application/json", "application/javascript",
	"application/x-javascript", "application/xml",
}

func harTextLike(mime string) bool {
	mime = strings.ToLower(mime)
	for _, t := range textLikeMimes {
		if strings.HasPrefix(mime, t) {
			return true
		}
	}
	return false
}

type harCapture struct {
	method    string
	url       string
	postData  string
	mimeType  string
	status    int64
	startedAt time.Time
	body      string
}

// harRecorder accumulates network traffic into a HAR 1.2 document.
// Bodies are fetched asynchronously when a response finishes loading;
// Export waits for in-flight fetches.
type harRecorder struct {
	ctx context.Context

	mu      sync.Mutex
	order   []network.RequestID
	entries map[network.RequestID]*harCapture
	fetches sync.WaitGroup
}

func newHARRecorder(ctx context.Context) *harRecorder {
	r := &harRecorder{
		ctx:     ctx,
		entries: make(map[network.RequestID]*harCapture),
	}

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			r.mu.Lock()
			if len(r.order) < maxHAREntries {
				if _, seen := r.entries[e.RequestID]; !seen {
					r.order = append(r.order, e.RequestID)
				}
				r.entries[e.RequestID] = &harCapture{
					method:    e.Request.Method,
					url:       e.Request.URL,
					startedAt: time.Now().UTC(),
				}
			}
			r.mu.Unlock()

		case *network.EventResponseReceived:
			r.mu.Lock()
			if c, ok := r.entries[e.RequestID]; ok {
				c.mimeType = e.Response.MimeType
				c.status = e.Response.Status
			}
			r.mu.Unlock()

		case *network.EventLoadingFinished:
			r.mu.Lock()
			c, ok := r.entries[e.RequestID]
			r.mu.Unlock()
			if !ok {
				return
			}
			r.fetches.Add(1)
			// GetResponseBody cannot run inside the event handler.
			go r.fetchBodies(e.RequestID, c)
		}
	})
	return r
}

func (r *harRecorder) fetchBodies(id network.RequestID, c *harCapture) {
	defer r.fetches.Done()

	err := chromedp.Run(r.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if c.method == "POST" && c.postData == "" {
			if data, err := network.GetRequestPostData(id).Do(ctx); err == nil {
				r.mu.Lock()
				c.postData = clampBody(data)
				r.mu.Unlock()
			}
		}
		if harTextLike(c.mimeType) && c.body == "" {
			body, err := network.GetResponseBody(id).Do(ctx)
			if err != nil {
				return nil // body already evicted, not an error
			}
			r.mu.Lock()
			c.body = clampBody(string(body))
			r.mu.Unlock()
		}
		return nil
	}))
	_ = err // session teardown races are expected here
}

func clampBody(s string) string {
	if len(s) > maxHARBodyBytes {
		return s[:maxHARBodyBytes]
	}
	return s
}

// HAR 1.2 output shape, limited to the fields the pattern scanners read.
type harDoc struct {
	Log struct {
		Version string     `json:"version"`
		Creator harCreator `json:"creator"`
		Entries []harOut   `json:"entries"`
	} `json:"log"`
}

type harCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type harOut struct {
	StartedDateTime string `json:"startedDateTime"`
	Request         struct {
		Method   string       `json:"method"`
		URL      string       `json:"url"`
		PostData *harPostData `json:"postData,omitempty"`
	} `json:"request"`
	Response struct {
		Status  int64 `json:"status"`
		Content struct {
			MimeType string `json:"mimeType"`
			Text     string `json:"text,omitempty"`
		} `json:"content"`
	} `json:"response"`
}

type harPostData struct {
	Text string `json:"text"`
}

// export renders the captured traffic as HAR JSON.
func (r *harRecorder) export() ([]byte, error) {
	r.fetches.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	var doc harDoc
	doc.Log.Version = "1.2"
	doc.Log.Creator = harCreator{Name: "scam-investigator", Version: "1.0"}
	doc.Log.Entries = []harOut{}
	for _, id := range r.order {
		c := r.entries[id]
		var e harOut
		e.StartedDateTime = c.startedAt.Format(time.RFC3339Nano)
		e.Request.Method = c.method
		e.Request.URL = c.url
		if c.postData != "" {
			e.Request.PostData = &harPostData{Text: c.postData}
		}
		e.Response.Status = c.status
		e.Response.Content.MimeType = c.mimeType
		e.Response.Content.Text = c.body
		doc.Log.Entries = append(doc.Log.Entries, e)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// ExportHAR returns the session's captured network traffic as a HAR 1.2
// document, or nil when HAR recording is disabled.
func (d *Driver) ExportHAR() ([]byte, error) {
	if d.har == nil {
		return nil, nil
	}
	return d.har.export()
}
