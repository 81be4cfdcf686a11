package wais

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	sha256simd "github.com/minio/sha256-simd"
)

// dialerTransport is a fakeTransport whose Dial returns a pre-built link
// (or an error), letting tests drive LinkClient without a real transport.
type dialerTransport struct {
	*fakeTransport
	link    Link
	dialErr error
}

func (d *dialerTransport) Dial(ctx context.Context, identity Identity, aspect string) (Link, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.link, nil
}

func newTestLinkClient(t *testing.T, link Link, timeout time.Duration) (*LinkClient, *dialerTransport) {
	t.Helper()
	tr := &dialerTransport{fakeTransport: newFakeTransport("client"), link: link}
	receiver := NewFileReceiver(t.TempDir(), nil)
	client := NewLinkClient(tr, "akita.wais.service.v1", timeout, receiver, nil)
	return client, tr
}

func TestLinkClientEstablishActivatesSession(t *testing.T) {
	link := newFakeLink(&fakeIdentity{hex: "server"})
	client, _ := newTestLinkClient(t, link, time.Second)

	session, gotLink, err := client.Establish(context.Background(), &fakeIdentity{hex: "server"})
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}
	if gotLink != link {
		t.Fatal("expected the dialed link to be returned")
	}
	if session.Status() != LinkActive {
		t.Errorf("expected Active session, got %v", session.Status())
	}
	client.Close(session, gotLink)
}

func TestLinkClientEstablishPropagatesDialError(t *testing.T) {
	tr := &dialerTransport{fakeTransport: newFakeTransport("client"), dialErr: ErrNotConnected}
	receiver := NewFileReceiver(t.TempDir(), nil)
	client := NewLinkClient(tr, "aspect", time.Second, receiver, nil)

	_, _, err := client.Establish(context.Background(), &fakeIdentity{hex: "server"})
	if err == nil {
		t.Fatal("expected Dial error to propagate")
	}
}

func TestLinkClientRequestListRoundTrip(t *testing.T) {
	link := newFakeLink(&fakeIdentity{hex: "server"})
	client, _ := newTestLinkClient(t, link, time.Second)

	session, gotLink, err := client.Establish(context.Background(), &fakeIdentity{hex: "server"})
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}

	reqDone := make(chan Response, 1)
	go func() {
		resp, err := client.Request(context.Background(), session, gotLink, Request{Action: ActionList})
		if err != nil {
			t.Errorf("Request: %v", err)
		}
		reqDone <- resp
	}()

	// Pull the request frame the client just sent and reply as the server
	// would.
	var sent []sentFrame
	for i := 0; i < 50 && len(sent) == 0; i++ {
		time.Sleep(10 * time.Millisecond)
		sent = link.sentFrames()
	}
	if len(sent) != 1 {
		t.Fatalf("expected one request frame sent, got %d", len(sent))
	}
	var req Request
	if err := json.Unmarshal(sent[0].payload, &req); err != nil {
		t.Fatalf("unmarshal sent request: %v", err)
	}

	respData, _ := json.Marshal(Response{RequestID: req.RequestID, Status: StatusOK, Files: []string{"a.txt"}})
	link.push(LinkEvent{Kind: LinkEventResponse, Data: respData})

	select {
	case resp := <-reqDone:
		if resp.Status != StatusOK || len(resp.Files) != 1 {
			t.Errorf("unexpected response: %+v", resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Request did not return in time")
	}
}

func TestLinkClientRequestTimeout(t *testing.T) {
	link := newFakeLink(&fakeIdentity{hex: "server"})
	client, _ := newTestLinkClient(t, link, 30*time.Millisecond)

	session, gotLink, err := client.Establish(context.Background(), &fakeIdentity{hex: "server"})
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}

	resp, err := client.Request(context.Background(), session, gotLink, Request{Action: ActionList})
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if resp.Status != StatusError || resp.Message != "Timeout" {
		t.Fatalf("unexpected timeout response: %+v", resp)
	}
}

func TestLinkClientGetTransitionsToFileReceiveMode(t *testing.T) {
	link := newFakeLink(&fakeIdentity{hex: "server"})
	client, _ := newTestLinkClient(t, link, 2*time.Second)

	session, gotLink, err := client.Establish(context.Background(), &fakeIdentity{hex: "server"})
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}

	reqDone := make(chan Response, 1)
	go func() {
		resp, err := client.Request(context.Background(), session, gotLink, Request{Action: ActionGet, Filename: "a.txt"})
		if err != nil {
			t.Errorf("Request: %v", err)
		}
		reqDone <- resp
	}()

	var sent []sentFrame
	for i := 0; i < 50 && len(sent) == 0; i++ {
		time.Sleep(10 * time.Millisecond)
		sent = link.sentFrames()
	}
	var req Request
	json.Unmarshal(sent[0].payload, &req)

	content := []byte("hello")
	digest := sha256simd.Sum256(content)
	meta := Response{
		RequestID: req.RequestID, Status: StatusFileMeta, Filename: "a.txt",
		Size: int64(len(content)), OriginalSize: int64(len(content)),
		SHA256: hex.EncodeToString(digest[:]),
	}
	metaData, _ := json.Marshal(meta)
	link.push(LinkEvent{Kind: LinkEventResponse, Data: metaData})
	link.push(LinkEvent{Kind: LinkEventData, Data: content})

	select {
	case resp := <-reqDone:
		if resp.Status != StatusOK {
			t.Fatalf("expected synthesized terminal ok response, got %+v", resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Request did not return in time")
	}
}

func TestLinkClientLinkClosedDuringTransferTimesOutRequest(t *testing.T) {
	link := newFakeLink(&fakeIdentity{hex: "server"})
	client, _ := newTestLinkClient(t, link, 200*time.Millisecond)

	session, gotLink, err := client.Establish(context.Background(), &fakeIdentity{hex: "server"})
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}

	reqDone := make(chan Response, 1)
	go func() {
		resp, _ := client.Request(context.Background(), session, gotLink, Request{Action: ActionGet, Filename: "a.txt"})
		reqDone <- resp
	}()

	var sent []sentFrame
	for i := 0; i < 50 && len(sent) == 0; i++ {
		time.Sleep(10 * time.Millisecond)
		sent = link.sentFrames()
	}
	var req Request
	json.Unmarshal(sent[0].payload, &req)

	meta := Response{RequestID: req.RequestID, Status: StatusFileMeta, Filename: "a.txt", Size: 100}
	metaData, _ := json.Marshal(meta)
	link.push(LinkEvent{Kind: LinkEventResponse, Data: metaData})
	link.push(LinkEvent{Kind: LinkEventData, Data: []byte("partial")})
	link.Close()

	select {
	case resp := <-reqDone:
		if resp.Status != StatusError {
			t.Fatalf("expected an error response after link close mid-transfer, got %+v", resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Request did not return in time")
	}
}
