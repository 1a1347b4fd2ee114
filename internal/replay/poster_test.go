package replay_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/okian/fightlog/internal/domain/model"
	"github.com/okian/fightlog/internal/replay"
	. "github.com/smartystreets/goconvey/convey"
)

// eventServer mimics the ingest endpoint. It answers 429 to the first
// busy requests.
type eventServer struct {
	mu     sync.Mutex
	busy   int
	status int
	got    []model.Event
	keys   []string
}

func (s *eventServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/healthz":
		w.WriteHeader(http.StatusOK)
		return
	case "/events":
	default:
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, r.Header.Get("Idempotency-Key"))
	if s.busy > 0 {
		s.busy--
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"code":"backpressure","message":"queue full"}`)
		return
	}
	if s.status != 0 {
		w.WriteHeader(s.status)
		_, _ = io.WriteString(w, `{"code":"bad_request","message":"nope"}`)
		return
	}
	body, _ := io.ReadAll(r.Body)
	events, err := model.DecodeBatch(body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.got = append(s.got, events...)
	w.WriteHeader(http.StatusAccepted)
	_, _ = io.WriteString(w, `{"status":"accepted","accepted":`+strconv.Itoa(len(events))+`}`)
}

func (s *eventServer) set(busy, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy, s.status = busy, status
}

func (s *eventServer) requestKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

func (s *eventServer) received() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Event(nil), s.got...)
}

func TestPoster(t *testing.T) {
	Convey("Given a poster and an ingest server", t, func() {
		srv := &eventServer{}
		ts := httptest.NewServer(srv)
		defer ts.Close()
		events := replay.Generate(replay.GenerateConfig{Fights: 2, Seed: 3})
		p := replay.NewPoster(replay.PostConfig{BaseURL: ts.URL + "/", BatchSize: 10}, nil)
		ctx := context.Background()

		Convey("When the server is healthy", func() {
			So(p.CheckHealth(ctx), ShouldBeNil)
		})

		Convey("When posting the whole stream", func() {
			stats, err := p.Post(ctx, events)

			Convey("Then every event arrives in order", func() {
				So(err, ShouldBeNil)
				So(stats.Accepted, ShouldEqual, len(events))
				So(stats.Batches, ShouldEqual, (len(events)+9)/10)
				got := srv.received()
				So(got, ShouldHaveLength, len(events))
				for i := range events {
					So(got[i].Kind(), ShouldEqual, events[i].Kind())
					So(got[i].Time().Equal(events[i].Time()), ShouldBeTrue)
				}
			})
		})

		Convey("When the server pushes back twice", func() {
			srv.set(2, 0)
			stats, err := p.Post(ctx, events[:5])

			Convey("Then the batch is retried", func() {
				So(err, ShouldBeNil)
				So(stats.Retries, ShouldEqual, 2)
				So(stats.Accepted, ShouldEqual, 5)
				keys := srv.requestKeys()
				So(keys, ShouldHaveLength, 3)
				So(keys[0], ShouldNotBeEmpty)
				So(keys[1], ShouldEqual, keys[0])
				So(keys[2], ShouldEqual, keys[0])
			})
		})

		Convey("When the server already holds the batch", func() {
			srv.set(0, http.StatusOK)
			stats, err := p.Post(ctx, events[:4])

			Convey("Then the batch counts as accepted", func() {
				So(err, ShouldBeNil)
				So(stats.Accepted, ShouldEqual, 4)
				So(srv.received(), ShouldBeEmpty)
			})
		})

		Convey("When the server rejects a batch", func() {
			srv.set(0, http.StatusBadRequest)
			_, err := p.Post(ctx, events)

			Convey("Then the post stops with the server message", func() {
				So(errors.Is(err, replay.ErrRejected), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "nope")
			})
		})
	})

	Convey("Given an unreachable server", t, func() {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		err := replay.NewPoster(replay.PostConfig{BaseURL: url}, nil).CheckHealth(context.Background())

		So(errors.Is(err, replay.ErrUnhealthy), ShouldBeTrue)
	})
}
