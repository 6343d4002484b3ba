package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
	"github.com/nerrad567/gray-logic-driver/internal/authority/authoritytest"
	"github.com/nerrad567/gray-logic-driver/internal/event"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/mqtt"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

type message struct {
	topic   string
	payload []byte
}

// recordingPublisher captures every published change event.
type recordingPublisher struct {
	messages []message
	err      error
}

func (p *recordingPublisher) Publish(topic string, payload []byte, _ byte, _ bool) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, message{topic, payload})
	return nil
}

func (p *recordingPublisher) events(t *testing.T) []event.Event {
	t.Helper()
	out := make([]event.Event, 0, len(p.messages))
	for _, m := range p.messages {
		e, err := event.JSONCodec{}.Decode(m.payload)
		if err != nil {
			t.Fatalf("decoding event on %s: %v", m.topic, err)
		}
		out = append(out, e)
	}
	return out
}

func (p *recordingPublisher) topics() []string {
	out := make([]string, 0, len(p.messages))
	for _, m := range p.messages {
		out = append(out, m.topic)
	}
	return out
}

type testEnv struct {
	authority *authoritytest.Authority
	publisher *recordingPublisher
	handler   http.Handler
	token     string
}

// testServer builds a server over an in-memory authority with two drivers:
// 1 (svc-a) owning profiles 10 and 11, and 2 (svc-b) owning profile 20.
func testServer(t *testing.T, secret string) *testEnv {
	t.Helper()

	a := authoritytest.New()
	a.Drivers.Seed(
		authority.Driver{ID: 1, Name: "a", ServiceName: "svc-a", Host: "10.0.0.1", Port: 8600},
		authority.Driver{ID: 2, Name: "b", ServiceName: "svc-b", Host: "10.0.0.2", Port: 8600},
	)
	a.DriverAttributes.Seed(
		authority.Attribute{ID: 1, Name: "host", Type: "string", DriverID: 1},
		authority.Attribute{ID: 2, Name: "port", Type: "int", DriverID: 1},
	)
	a.Profiles.Seed(
		authority.Profile{ID: 10, Name: "meter", DriverID: 1},
		authority.Profile{ID: 11, Name: "relay", DriverID: 1},
		authority.Profile{ID: 20, Name: "sensor", DriverID: 2},
	)

	pub := &recordingPublisher{}
	srv, err := New(Deps{
		Config:    config.ServerConfig{Host: "127.0.0.1", TokenSecret: secret},
		Client:    a.Client(),
		Publisher: pub,
		Logger:    logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "authority", "test", io.Discard),
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	env := &testEnv{authority: a, publisher: pub, handler: srv.Handler()}
	if secret != "" {
		env.token = signToken(t, secret, "svc-a", time.Minute)
	}
	return env
}

func signToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.doWithToken(t, method, path, body, e.token)
}

func (e *testEnv) doWithToken(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

// decode unwraps an envelope, failing the test when the status differs.
func decode[T any](t *testing.T, w *httptest.ResponseRecorder, wantStatus int) authority.Envelope[T] {
	t.Helper()
	if w.Code != wantStatus {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, wantStatus, w.Body.String())
	}
	var env authority.Envelope[T]
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding envelope: %v; body: %s", err, w.Body.String())
	}
	return env
}

func TestNew_RequiresDeps(t *testing.T) {
	log := logging.NewWithWriter(config.LoggingConfig{Level: "error"}, "authority", "test", io.Discard)
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("New() without client should fail")
	}
	if _, err := New(Deps{Client: authoritytest.New().Client()}); err == nil {
		t.Error("New() without logger should fail")
	}
}

func TestHealth_NoAuthRequired(t *testing.T) {
	env := testServer(t, testSecret)

	w := env.doWithToken(t, http.MethodGet, "/api/v1/health", nil, "")
	resp := decode[map[string]string](t, w, http.StatusOK)
	if !resp.OK || resp.Data["status"] != "ok" || resp.Data["version"] != "test" {
		t.Errorf("health = %+v", resp)
	}
}

func TestAuth(t *testing.T) {
	env := testServer(t, testSecret)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", signToken(t, "another-secret-of-sufficient-length!", "svc-a", time.Minute), http.StatusUnauthorized},
		{"expired", signToken(t, testSecret, "svc-a", -time.Minute), http.StatusUnauthorized},
		{"no subject", signToken(t, testSecret, "", time.Minute), http.StatusUnauthorized},
		{"valid", signToken(t, testSecret, "svc-a", time.Minute), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.doWithToken(t, http.MethodGet, "/api/v1/drivers", nil, tt.token)
			resp := decode[json.RawMessage](t, w, tt.status)
			if resp.OK != (tt.status == http.StatusOK) {
				t.Errorf("ok = %v for status %d", resp.OK, tt.status)
			}
		})
	}
}

func TestAuth_DisabledWithoutSecret(t *testing.T) {
	env := testServer(t, "")
	w := env.doWithToken(t, http.MethodGet, "/api/v1/drivers", nil, "")
	decode[json.RawMessage](t, w, http.StatusOK)
}

func TestParseToken(t *testing.T) {
	claims, err := ParseToken(signToken(t, testSecret, "svc-a", time.Minute), testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error: %v", err)
	}
	if claims.Subject != "svc-a" {
		t.Errorf("subject = %q, want svc-a", claims.Subject)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "svc-a"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing none token: %v", err)
	}
	if _, err := ParseToken(unsigned, testSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("alg=none: error = %v, want ErrTokenInvalid", err)
	}
}

func TestRequestID(t *testing.T) {
	env := testServer(t, "")

	w := env.do(t, http.MethodGet, "/api/v1/health", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should be generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestDriverLookups(t *testing.T) {
	env := testServer(t, testSecret)

	resp := decode[authority.Driver](t, env.do(t, http.MethodGet, "/api/v1/drivers/by-service/svc-b", nil), http.StatusOK)
	if resp.Data.ID != 2 {
		t.Errorf("by-service id = %d, want 2", resp.Data.ID)
	}

	resp = decode[authority.Driver](t, env.do(t, http.MethodGet, "/api/v1/drivers/by-host/10.0.0.1/8600", nil), http.StatusOK)
	if resp.Data.ID != 1 {
		t.Errorf("by-host id = %d, want 1", resp.Data.ID)
	}

	missing := decode[json.RawMessage](t, env.do(t, http.MethodGet, "/api/v1/drivers/by-service/nope", nil), http.StatusNotFound)
	if missing.OK || missing.Message == "" {
		t.Errorf("missing driver envelope = %+v", missing)
	}

	decode[json.RawMessage](t, env.do(t, http.MethodGet, "/api/v1/drivers/by-host/10.0.0.1/http", nil), http.StatusBadRequest)
}

func TestList_FilterAndPaging(t *testing.T) {
	env := testServer(t, "")
	env.authority.Devices.Seed(
		authority.Device{ID: 1, Name: "m1", ProfileID: 10},
		authority.Device{ID: 2, Name: "m2", ProfileID: 10},
		authority.Device{ID: 3, Name: "s1", ProfileID: 20},
	)

	all := decode[authority.Page[authority.Device]](t, env.do(t, http.MethodGet, "/api/v1/devices", nil), http.StatusOK)
	if len(all.Data.Records) != 3 {
		t.Errorf("unfiltered list = %d records, want 3", len(all.Data.Records))
	}

	page := decode[authority.Page[authority.Device]](t,
		env.do(t, http.MethodGet, "/api/v1/devices?profile_id=10&page=2&size=1", nil), http.StatusOK)
	if page.Data.Total != 2 || len(page.Data.Records) != 1 || page.Data.Records[0].Name != "m2" {
		t.Errorf("page = %+v", page.Data)
	}

	one := decode[authority.Page[authority.Device]](t, env.do(t, http.MethodGet, "/api/v1/devices?id=3", nil), http.StatusOK)
	if len(one.Data.Records) != 1 || one.Data.Records[0].Name != "s1" {
		t.Errorf("id filter = %+v", one.Data)
	}

	for _, q := range []string{"profile_id=x", "size=0", "page=0", "device_id=-1"} {
		decode[json.RawMessage](t, env.do(t, http.MethodGet, "/api/v1/devices?"+q, nil), http.StatusBadRequest)
	}
}

func TestGetOne(t *testing.T) {
	env := testServer(t, "")

	resp := decode[authority.Profile](t, env.do(t, http.MethodGet, "/api/v1/profiles/20", nil), http.StatusOK)
	if resp.Data.Name != "sensor" {
		t.Errorf("profile = %+v", resp.Data)
	}
	decode[json.RawMessage](t, env.do(t, http.MethodGet, "/api/v1/profiles/99", nil), http.StatusNotFound)
	decode[json.RawMessage](t, env.do(t, http.MethodGet, "/api/v1/profiles/abc", nil), http.StatusBadRequest)
}

func TestCreate_PublishesToOwner(t *testing.T) {
	env := testServer(t, "")

	resp := decode[authority.Device](t, env.do(t, http.MethodPost, "/api/v1/devices",
		authority.Device{ID: 999, Name: "meter-1", ProfileID: 20}), http.StatusCreated)
	if resp.Data.ID == 999 || resp.Data.ID == 0 {
		t.Errorf("created id = %d, want one assigned by the authority", resp.Data.ID)
	}

	want := mqtt.Topics{Service: "svc-b"}.Event("device", "upsert")
	if got := env.publisher.topics(); len(got) != 1 || got[0] != want {
		t.Fatalf("topics = %v, want [%s]", got, want)
	}
	e := env.publisher.events(t)[0]
	if e.Kind != event.KindDevice || e.Op != event.OpUpsert || e.Device.Name != "meter-1" {
		t.Errorf("event = %+v", e)
	}
}

func TestCreate_UnpublishedKinds(t *testing.T) {
	env := testServer(t, "")

	decode[authority.Attribute](t, env.do(t, http.MethodPost, "/api/v1/point-attributes",
		authority.Attribute{Name: "offset", Type: "int", DriverID: 1}), http.StatusCreated)
	decode[authority.Driver](t, env.do(t, http.MethodPost, "/api/v1/drivers",
		authority.Driver{Name: "c", ServiceName: "svc-c", Host: "10.0.0.3", Port: 8601}), http.StatusCreated)

	if len(env.publisher.messages) != 0 {
		t.Errorf("schema and driver changes published %v", env.publisher.topics())
	}
}

func TestCreate_PointInfoResolvesOwnerThroughDevice(t *testing.T) {
	env := testServer(t, "")
	env.authority.Devices.Seed(authority.Device{ID: 5, Name: "m5", ProfileID: 11})

	decode[authority.PointInfo](t, env.do(t, http.MethodPost, "/api/v1/point-infos",
		authority.PointInfo{PointAttributeID: 1, Value: "3", DeviceID: 5, PointID: 1}), http.StatusCreated)

	want := mqtt.Topics{Service: "svc-a"}.Event("point_info", "upsert")
	if got := env.publisher.topics(); len(got) != 1 || got[0] != want {
		t.Errorf("topics = %v, want [%s]", got, want)
	}
}

func TestCreate_OwnerUnresolvedStillSucceeds(t *testing.T) {
	env := testServer(t, "")

	decode[authority.Device](t, env.do(t, http.MethodPost, "/api/v1/devices",
		authority.Device{Name: "orphan", ProfileID: 404}), http.StatusCreated)
	if len(env.publisher.messages) != 0 {
		t.Errorf("published %v for an unresolvable owner", env.publisher.topics())
	}
}

func TestCreate_PublishFailureStillSucceeds(t *testing.T) {
	env := testServer(t, "")
	env.publisher.err = errors.New("broker down")

	decode[authority.Device](t, env.do(t, http.MethodPost, "/api/v1/devices",
		authority.Device{Name: "m1", ProfileID: 10}), http.StatusCreated)
	if len(env.authority.Devices.Records()) != 1 {
		t.Error("device should be stored even when publishing fails")
	}
}

func TestUpdate_MoveBetweenDrivers(t *testing.T) {
	env := testServer(t, "")
	env.authority.Devices.Seed(authority.Device{ID: 1, Name: "m1", ProfileID: 10})

	decode[authority.Device](t, env.do(t, http.MethodPut, "/api/v1/devices/1",
		authority.Device{Name: "m1", ProfileID: 20}), http.StatusOK)

	want := []string{
		mqtt.Topics{Service: "svc-a"}.Event("device", "delete"),
		mqtt.Topics{Service: "svc-b"}.Event("device", "upsert"),
	}
	got := env.publisher.topics()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("topics = %v, want %v", got, want)
	}
	if removed := env.publisher.events(t)[0]; removed.Device.ProfileID != 10 {
		t.Errorf("delete event should carry the old record, got profile %d", removed.Device.ProfileID)
	}
}

func TestUpdate_MoveWithinDriver(t *testing.T) {
	env := testServer(t, "")
	env.authority.Devices.Seed(authority.Device{ID: 1, Name: "m1", ProfileID: 10})
	env.authority.DriverInfos.Seed(authority.DriverInfo{ID: 1, DriverAttributeID: 1, Value: "a", ProfileID: 10})

	decode[authority.Device](t, env.do(t, http.MethodPut, "/api/v1/devices/1",
		authority.Device{Name: "m1", ProfileID: 11}), http.StatusOK)
	if got := env.publisher.topics(); len(got) != 1 || got[0] != (mqtt.Topics{Service: "svc-a"}).Event("device", "upsert") {
		t.Errorf("device move within a driver: topics = %v", got)
	}

	env.publisher.messages = nil
	decode[authority.DriverInfo](t, env.do(t, http.MethodPut, "/api/v1/driver-infos/1",
		authority.DriverInfo{DriverAttributeID: 1, Value: "a", ProfileID: 11}), http.StatusOK)
	events := env.publisher.events(t)
	if len(events) != 2 || events[0].Op != event.OpDelete || events[0].DriverInfo.ProfileID != 10 ||
		events[1].Op != event.OpUpsert || events[1].DriverInfo.ProfileID != 11 {
		t.Errorf("driver info move: events = %+v", events)
	}
}

func TestUpdate_Errors(t *testing.T) {
	env := testServer(t, "")

	decode[json.RawMessage](t, env.do(t, http.MethodPut, "/api/v1/devices/7",
		authority.Device{Name: "m7", ProfileID: 10}), http.StatusNotFound)
	decode[json.RawMessage](t, env.do(t, http.MethodPut, "/api/v1/devices/7", "{not json"), http.StatusBadRequest)
	decode[json.RawMessage](t, env.do(t, http.MethodPut, "/api/v1/devices/0", authority.Device{}), http.StatusBadRequest)

	if len(env.publisher.messages) != 0 {
		t.Errorf("failed updates published %v", env.publisher.topics())
	}
}

func TestDelete(t *testing.T) {
	env := testServer(t, "")
	env.authority.Points.Seed(authority.Point{ID: 4, Name: "voltage", Type: "float", ProfileID: 20})

	resp := decode[bool](t, env.do(t, http.MethodDelete, "/api/v1/points/4", nil), http.StatusOK)
	if !resp.Data {
		t.Error("first delete should report removal")
	}
	events := env.publisher.events(t)
	if len(events) != 1 || events[0].Op != event.OpDelete || events[0].Point.Name != "voltage" {
		t.Fatalf("events = %+v", events)
	}
	if env.publisher.messages[0].topic != (mqtt.Topics{Service: "svc-b"}).Event("point", "delete") {
		t.Errorf("topic = %s", env.publisher.messages[0].topic)
	}

	resp = decode[bool](t, env.do(t, http.MethodDelete, "/api/v1/points/4", nil), http.StatusOK)
	if resp.Data {
		t.Error("second delete should report nothing removed")
	}
	if len(env.publisher.messages) != 1 {
		t.Errorf("no-op delete published %v", env.publisher.topics())
	}
}

func TestErrorMapping(t *testing.T) {
	env := testServer(t, "")

	env.authority.Profiles.FailOn(authoritytest.OpAdd, authority.ErrConflict)
	decode[json.RawMessage](t, env.do(t, http.MethodPost, "/api/v1/profiles",
		authority.Profile{Name: "dup", DriverID: 1}), http.StatusConflict)

	env.authority.Profiles.FailOn(authoritytest.OpAdd, authority.ErrInvalid)
	decode[json.RawMessage](t, env.do(t, http.MethodPost, "/api/v1/profiles",
		authority.Profile{DriverID: 1}), http.StatusBadRequest)

	env.authority.Devices.FailOn(authoritytest.OpList, errors.New("disk I/O error"))
	resp := decode[json.RawMessage](t, env.do(t, http.MethodGet, "/api/v1/devices", nil), http.StatusInternalServerError)
	if resp.Message != "internal server error" {
		t.Errorf("500 message = %q, internal detail should not leak", resp.Message)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/widgets", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want 404", w.Code)
	}
	if w := env.do(t, http.MethodPatch, "/api/v1/devices", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("PATCH status = %d, want 405", w.Code)
	}
}

func TestStartAndClose(t *testing.T) {
	log := logging.NewWithWriter(config.LoggingConfig{Level: "error"}, "authority", "test", io.Discard)
	srv, err := New(Deps{
		Config: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Client: authoritytest.New().Client(),
		Logger: log,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer srv.Close() //nolint:errcheck // Test cleanup

	resp, err := http.Get("http://" + srv.Addr().String() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
