package streamsync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sua-org/titan-nvr/internal/go2rtc"
)

// fakeRelay simula a API do go2rtc para os testes: catálogo em memória,
// config durável em memória e knobs para injetar falhas no meio de uma
// operação.
type fakeRelay struct {
	mu sync.Mutex

	config  map[string]string          // seção streams da config durável
	catalog map[string]go2rtc.Stream   // GET /api/streams
	recv    map[string]int64           // bytes "recebidos" por stream novo

	failPut     bool // PUT /api/streams responde 500
	failCatalog bool // GET /api/streams responde 500
	failPatch   bool // PATCH /api/config responde 500

	defaultRecv int64 // bytes de qualquer stream novo (ids imprevisíveis)
	noProducers bool  // streams novos entram no catálogo sem producer
	skipMirror  bool  // PATCH grava a config mas não reflete no catálogo

	server *httptest.Server
}

func newFakeRelay() *fakeRelay {
	f := &fakeRelay{
		config:  make(map[string]string),
		catalog: make(map[string]go2rtc.Stream),
		recv:    make(map[string]int64),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeRelay) Close() { f.server.Close() }

func (f *fakeRelay) URL() string { return f.server.URL }

// setRecv define quantos bytes os próximos streams registrados com essa
// URL vão "receber" no catálogo.
func (f *fakeRelay) setRecv(id string, bytes int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recv[id] = bytes
	if s, ok := f.catalog[id]; ok && len(s.Producers) > 0 {
		s.Producers[0].Recv = bytes
		f.catalog[id] = s
	}
}

// dropProducers deixa o stream no catálogo sem producer nenhum.
func (f *fakeRelay) dropProducers(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.catalog[id]; ok {
		s.Producers = nil
		f.catalog[id] = s
	}
}

func (f *fakeRelay) configStreams() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.config))
	for k, v := range f.config {
		out[k] = v
	}
	return out
}

func (f *fakeRelay) addToCatalogLocked(id, url string) {
	if f.noProducers {
		f.catalog[id] = go2rtc.Stream{}
		return
	}
	recv := f.recv[id]
	if recv == 0 {
		recv = f.defaultRecv
	}
	f.catalog[id] = go2rtc.Stream{
		Producers: []go2rtc.Producer{{URL: url, Recv: recv}},
	}
}

func (f *fakeRelay) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/api" && r.Method == http.MethodGet:
		w.WriteHeader(http.StatusOK)

	case r.URL.Path == "/api/streams" && r.Method == http.MethodPut:
		if f.failPut {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		id := r.URL.Query().Get("src")
		f.addToCatalogLocked(id, r.URL.Query().Get("url"))
		w.WriteHeader(http.StatusOK)

	case r.URL.Path == "/api/streams" && r.Method == http.MethodDelete:
		id := r.URL.Query().Get("src")
		if _, ok := f.catalog[id]; !ok {
			// go2rtc devolve 404 para id desconhecido; o client trata
			// como sucesso.
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		delete(f.catalog, id)
		w.WriteHeader(http.StatusOK)

	case r.URL.Path == "/api/streams" && r.Method == http.MethodGet:
		if f.failCatalog {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(f.catalog)

	case r.URL.Path == "/api/config" && r.Method == http.MethodGet:
		data, _ := yaml.Marshal(go2rtc.Config{Streams: f.config})
		w.Write(data)

	case r.URL.Path == "/api/config" && r.Method == http.MethodPatch:
		if f.failPatch {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		var cfg go2rtc.Config
		if err := yaml.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Aplicar a config reflete no catálogo, como o relay real faz
		// depois de recarregar.
		if !f.skipMirror {
			for id, url := range cfg.Streams {
				if _, ok := f.catalog[id]; !ok {
					f.addToCatalogLocked(id, url)
				}
			}
			for id := range f.config {
				if _, ok := cfg.Streams[id]; !ok {
					delete(f.catalog, id)
				}
			}
		}
		f.config = cfg.Streams
		if f.config == nil {
			f.config = make(map[string]string)
		}
		w.WriteHeader(http.StatusOK)

	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}
