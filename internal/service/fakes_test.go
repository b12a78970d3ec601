package service_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/port"
)

// --- Mocks ---

type handlerFunc func(src port.TokenSource, body any) *domain.Envelope

// fakeAPI is a port.APIClient answering from a route table keyed by
// "METHOD path". Unknown routes answer 404. Like the real client, a 401
// with a token source invokes the unauthorized hook.
type fakeAPI struct {
	mu             sync.Mutex
	routes         map[string]handlerFunc
	calls          map[string]int
	bodies         map[string]any
	uploads        map[string][]byte
	onUnauthorized func(ctx context.Context, src port.TokenSource)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		routes:  make(map[string]handlerFunc),
		calls:   make(map[string]int),
		bodies:  make(map[string]any),
		uploads: make(map[string][]byte),
	}
}

func (f *fakeAPI) on(method, path string, fn handlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = fn
}

func (f *fakeAPI) reply(method, path string, env *domain.Envelope) {
	f.on(method, path, func(port.TokenSource, any) *domain.Envelope { return env })
}

func (f *fakeAPI) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method+" "+path]
}

func (f *fakeAPI) body(method, path string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[method+" "+path]
}

func (f *fakeAPI) call(ctx context.Context, method, path string, src port.TokenSource, body any) *domain.Envelope {
	key := method + " " + path
	f.mu.Lock()
	fn := f.routes[key]
	f.calls[key]++
	f.bodies[key] = body
	hook := f.onUnauthorized
	f.mu.Unlock()

	if fn == nil {
		return fail(404, "Not Found")
	}
	env := fn(src, body)
	if env.Status == 401 && src != nil && hook != nil {
		hook(ctx, src)
	}
	return env
}

func (f *fakeAPI) Get(ctx context.Context, src port.TokenSource, path string) *domain.Envelope {
	return f.call(ctx, "GET", path, src, nil)
}

func (f *fakeAPI) Post(ctx context.Context, src port.TokenSource, path string, body any) *domain.Envelope {
	return f.call(ctx, "POST", path, src, body)
}

func (f *fakeAPI) Put(ctx context.Context, src port.TokenSource, path string, body any) *domain.Envelope {
	return f.call(ctx, "PUT", path, src, body)
}

func (f *fakeAPI) Delete(ctx context.Context, src port.TokenSource, path string) *domain.Envelope {
	return f.call(ctx, "DELETE", path, src, nil)
}

func (f *fakeAPI) Upload(ctx context.Context, src port.TokenSource, path, _, filename string, r io.Reader) *domain.Envelope {
	data, _ := io.ReadAll(r)
	f.mu.Lock()
	f.uploads[filename] = data
	f.mu.Unlock()
	return f.call(ctx, "UPLOAD", path, src, filename)
}

// ok builds a {success:true, data:v} envelope the way the client does.
func ok(v any) *domain.Envelope {
	data, _ := json.Marshal(v)
	raw, _ := json.Marshal(map[string]json.RawMessage{"success": json.RawMessage("true"), "data": data})
	return &domain.Envelope{Success: true, Status: 200, Data: data, Raw: raw}
}

// okRaw builds a 2xx envelope from a literal body without a data key.
func okRaw(body string) *domain.Envelope {
	return &domain.Envelope{Success: true, Status: 200, Raw: json.RawMessage(body)}
}

func fail(status int, msg string) *domain.Envelope {
	return &domain.Envelope{Success: false, Status: status, Error: msg}
}

func authenticated(id, role string) *domain.Session {
	s := domain.NewSession(id, domain.VariantDesktop, false)
	s.Authenticate("tok-"+id, "ana", role, time.Now().Add(time.Hour))
	return s
}
