package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/fightlog/internal/adapters/http/api"
	"github.com/okian/fightlog/internal/adapters/mq/queue"
	"github.com/okian/fightlog/internal/adapters/repository"
	"github.com/okian/fightlog/internal/domain/dedupe"
	"github.com/okian/fightlog/internal/domain/encounter"
	"github.com/okian/fightlog/internal/domain/model"
	"github.com/okian/fightlog/internal/domain/tracker"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	dedupe.Deduper

	enqueueErr error
	enqueued   []model.Event

	records  map[string]encounter.Record
	listed   int
	mergeErr error
	merged   []string
	top      []repository.Entry
}

func (m *mockDependencies) EnqueueEvents(_ context.Context, events []model.Event) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.enqueued = append(m.enqueued, events...)
	return nil
}

func (m *mockDependencies) Encounters(_ context.Context, limit int) ([]encounter.Record, error) {
	m.listed = limit
	out := []encounter.Record{}
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockDependencies) Encounter(_ context.Context, id string) (encounter.Record, error) {
	r, ok := m.records[id]
	if !ok {
		return encounter.Record{}, fmt.Errorf("get %s: %w", id, repository.ErrNotFound)
	}
	return r, nil
}

func (m *mockDependencies) MergeEncounters(_ context.Context, name string, ids []string) (encounter.Record, error) {
	if m.mergeErr != nil {
		return encounter.Record{}, m.mergeErr
	}
	m.merged = ids
	return encounter.Record{ID: "merged", Status: encounter.Merged, Adversary: &encounter.Participant{Name: name}}, nil
}

func (m *mockDependencies) ActiveEncounters(context.Context) []tracker.EncounterView {
	return []tracker.EncounterView{{ID: "enc-1", Adversary: "a gnoll"}}
}

func (m *mockDependencies) ActiveRaids(context.Context) []tracker.RaidView { return nil }

func (m *mockDependencies) TopDamage(_ context.Context, n int) ([]repository.Entry, error) {
	return m.top[:min(n, len(m.top))], nil
}

func (m *mockDependencies) GetStats() map[string]any {
	return map[string]any{"started": true}
}

func newMux(deps *mockDependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, 100).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body.Code
}

const hitJSON = `{"kind":"hit","at":"2026-03-01T20:15:09Z","source":"Aldar","target":"a gnoll","amount":150,"category":"slashes"}`

func postWithKey(mux *http.ServeMux, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/events", strings.NewReader(body))
	req.Header.Set(api.IdempotencyHeader, key)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Events(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{Deduper: dedupe.NewInMemoryDeduper()}
		mux := newMux(deps)

		Convey("When posting a single event", func() {
			w := do(mux, "POST", "/events", hitJSON)

			Convey("Then it is decoded and accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.enqueued, ShouldHaveLength, 1)
				hit, ok := deps.enqueued[0].(model.Hit)
				So(ok, ShouldBeTrue)
				So(hit.Amount, ShouldEqual, int64(150))
				So(hit.At.Equal(time.Date(2026, 3, 1, 20, 15, 9, 0, time.UTC)), ShouldBeTrue)
			})
		})

		Convey("When posting a batch", func() {
			w := do(mux, "POST", "/events", "["+hitJSON+`,{"kind":"death","at":"2026-03-01T20:15:10Z","name":"a gnoll"}]`)

			Convey("Then every event is queued in order", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.enqueued, ShouldHaveLength, 2)
				So(deps.enqueued[1].Kind(), ShouldEqual, model.KindDeath)
			})
		})

		Convey("When the payload is malformed", func() {
			w := do(mux, "POST", "/events", `{"kind":"teleport","at":"2026-03-01T20:15:09Z"}`)

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, "bad_request")
				So(deps.enqueued, ShouldBeEmpty)
			})
		})

		Convey("When the queue is full", func() {
			deps.enqueueErr = fmt.Errorf("enqueue: %w", queue.ErrQueueFull)
			w := do(mux, "POST", "/events", hitJSON)

			Convey("Then backpressure is reported", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(errorCode(w), ShouldEqual, "backpressure")
			})
		})

		Convey("When the queue is closed", func() {
			deps.enqueueErr = queue.ErrQueueClosed
			w := do(mux, "POST", "/events", hitJSON)

			Convey("Then the service is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When a keyed batch is retried", func() {
			first := postWithKey(mux, "batch-1", hitJSON)
			second := postWithKey(mux, "batch-1", hitJSON)

			Convey("Then it is queued once", func() {
				So(first.Code, ShouldEqual, http.StatusAccepted)
				So(second.Code, ShouldEqual, http.StatusOK)
				So(second.Body.String(), ShouldContainSubstring, `"duplicate":true`)
				So(deps.enqueued, ShouldHaveLength, 1)
			})
		})

		Convey("When a keyed batch hits backpressure", func() {
			deps.enqueueErr = queue.ErrQueueFull
			refused := postWithKey(mux, "batch-2", hitJSON)
			deps.enqueueErr = nil
			retried := postWithKey(mux, "batch-2", hitJSON)

			Convey("Then the retry with the same key is accepted", func() {
				So(refused.Code, ShouldEqual, http.StatusTooManyRequests)
				So(retried.Code, ShouldEqual, http.StatusAccepted)
				So(deps.enqueued, ShouldHaveLength, 1)
			})
		})

		Convey("When using the wrong method", func() {
			w := do(mux, "GET", "/events", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_Encounters(t *testing.T) {
	Convey("Given stored encounters", t, func() {
		deps := &mockDependencies{records: map[string]encounter.Record{
			"enc-1": {ID: "enc-1", Status: encounter.Killed, Adversary: &encounter.Participant{Name: "a gnoll"}},
		}}
		mux := newMux(deps)

		Convey("When listing without a limit", func() {
			w := do(mux, "GET", "/encounters", "")

			Convey("Then the default limit is used", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.listed, ShouldEqual, 50)
				var out []map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
				So(out, ShouldHaveLength, 1)
				So(out[0]["status"], ShouldEqual, "Killed")
			})
		})

		Convey("When the limit is invalid or too large", func() {
			So(do(mux, "GET", "/encounters?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, "GET", "/encounters?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, "GET", "/encounters?limit=101", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When fetching by id", func() {
			So(do(mux, "GET", "/encounters/enc-1", "").Code, ShouldEqual, http.StatusOK)

			w := do(mux, "GET", "/encounters/missing", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "not_found")

			So(do(mux, "GET", "/encounters/a/b", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When merging", func() {
			w := do(mux, "POST", "/encounters/merge", `{"name":"Nagafen's Lair","ids":["enc-1","enc-2"]}`)

			Convey("Then the merged record is returned", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(deps.merged, ShouldResemble, []string{"enc-1", "enc-2"})
			})
		})

		Convey("When the merge request is invalid", func() {
			So(do(mux, "POST", "/encounters/merge", `{"ids":["enc-1"]}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, "POST", "/encounters/merge", `{"ids":["enc-1","enc-1"]}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, "POST", "/encounters/merge", `{"ids":["enc-1",""]}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, "POST", "/encounters/merge", `not json`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a merged id is unknown or unreadable", func() {
			deps.mergeErr = repository.ErrNotFound
			So(do(mux, "POST", "/encounters/merge", `{"ids":["a","b"]}`).Code, ShouldEqual, http.StatusNotFound)

			deps.mergeErr = fmt.Errorf("rebuild: %w", encounter.ErrInvalidRecord)
			So(do(mux, "POST", "/encounters/merge", `{"ids":["a","b"]}`).Code, ShouldEqual, http.StatusUnprocessableEntity)

			deps.mergeErr = errors.New("disk on fire")
			So(do(mux, "POST", "/encounters/merge", `{"ids":["a","b"]}`).Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestServer_ReadViews(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{top: []repository.Entry{
			{Rank: 1, Name: "Brin", Damage: 700},
			{Rank: 2, Name: "Aldar", Damage: 500},
		}}
		mux := newMux(deps)

		Convey("Then /active lists in-flight encounters", func() {
			w := do(mux, "GET", "/active", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"adversary":"a gnoll"`)
		})

		Convey("Then /top ranks participants", func() {
			w := do(mux, "GET", "/top?limit=1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var out []repository.Entry
			So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
			So(out, ShouldResemble, []repository.Entry{{Rank: 1, Name: "Brin", Damage: 700}})
		})

		Convey("Then /stats, /healthz and /metrics respond", func() {
			So(do(mux, "GET", "/stats", "").Body.String(), ShouldContainSubstring, `"started":true`)
			So(do(mux, "GET", "/healthz", "").Code, ShouldEqual, http.StatusOK)
			So(do(mux, "GET", "/metrics", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then unknown routes are not found", func() {
			So(do(mux, "GET", "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
