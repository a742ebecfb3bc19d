// Package webhook posts chain lifecycle events to an operator-configured
// HTTP endpoint as JSON documents, one POST per event.
package webhook

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nullbyte-labs/chainstore"
)

// Notifier posts one JSON document per feed/error event to URL.
type Notifier struct {
	URL    string
	client *http.Client
}

func New(url string) *Notifier {
	return &Notifier{URL: url, client: &http.Client{Timeout: 10 * time.Second}}
}

type feedPayload struct {
	Event        string `json:"event"`
	DiscoveryKey string `json:"discovery_key"`
	Writable     bool   `json:"writable"`
	Length       uint64 `json:"length"`
}

type errorPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// Watch blocks, forwarding every event delivered on feed/errs until both
// channels close. Callers typically run it in its own goroutine.
func (n *Notifier) Watch(feed <-chan chainstore.FeedEvent, errs <-chan error) {
	for feed != nil || errs != nil {
		select {
		case ev, ok := <-feed:
			if !ok {
				feed = nil
				continue
			}
			n.sendFeed(ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			n.sendError(err)
		}
	}
}

func (n *Notifier) sendFeed(ev chainstore.FeedEvent) {
	if n.URL == "" {
		return
	}
	n.post(feedPayload{
		Event:        "feed",
		DiscoveryKey: hex.EncodeToString(ev.Chain.DiscoveryKey()),
		Writable:     ev.Chain.Writable(),
		Length:       ev.Chain.Length(),
	})
}

func (n *Notifier) sendError(err error) {
	if n.URL == "" {
		return
	}
	n.post(errorPayload{Event: "error", Message: err.Error()})
}

func (n *Notifier) post(body interface{}) {
	payload, err := json.Marshal(body)
	if err != nil {
		return
	}
	req, err := http.NewRequest(http.MethodPost, n.URL, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
