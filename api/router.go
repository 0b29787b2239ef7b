package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"usdfcterminal/gateway/middleware"
)

// RouterConfig wires the façade into the public REST surface from §6.
type RouterConfig struct {
	CORS          middleware.CORSConfig
	Observability *middleware.Observability
	Security      SecurityConfig
}

// NewRouter mounts every /api/v1 endpoint the spec names plus the
// /health and /ready liveness/readiness probes, following the teacher's
// route-group-per-concern layout.
func (f *Facade) NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(SecurityHeaders(cfg.Security))
	if cfg.Observability != nil {
		r.Use(cfg.Observability.Middleware("usdfcterminal"))
	}

	r.Get("/health", f.handleHealth)
	r.Get("/ready", f.handleReady)

	r.Route("/api/v1", func(sr chi.Router) {
		sr.Get("/price", f.handlePrice)
		sr.Get("/metrics", f.handleMetrics)
		sr.Get("/health", f.handleHealth)
		sr.Get("/history", f.handleHistory)
		sr.Get("/troves", f.handleTroves)
		sr.Get("/troves/{addr}", f.handleTrove)
		sr.Get("/transactions", f.handleTransactions)
		sr.Get("/address/{addr}", f.handleAddressInfo)
		sr.Get("/lending", f.handleLendingMarkets)
		sr.Get("/lending/{currency}/orderbook", f.handleOrderBook)
		sr.Get("/holders", f.handleHolders)
	})

	if cfg.Observability != nil {
		r.Handle("/metrics", cfg.Observability.MetricsHandler())
	}

	return r
}

func (f *Facade) handlePrice(w http.ResponseWriter, r *http.Request) {
	price, err := f.GetPrice(r.Context())
	if err != nil {
		f.writeError(w, statusForError(err), err)
		return
	}
	f.writeOK(w, price)
}

func (f *Facade) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := f.GetProtocolMetrics(r.Context())
	if err != nil {
		f.writeError(w, statusForError(err), err)
		return
	}
	f.writeOK(w, metrics)
}

func (f *Facade) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := f.GetHealth(r.Context())
	status := http.StatusOK
	if report.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, envelope{Success: true, Data: report, Timestamp: f.now().Unix()})
}

func (f *Facade) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (f *Facade) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	metric := q.Get("metric")
	from := parseInt64(q.Get("from"))
	to := parseInt64(q.Get("to"))
	resolution := parseInt(q.Get("resolution"))
	if resolution <= 0 {
		resolution = 15
	}
	points, err := f.GetHistory(metric, from, to, resolution)
	if err != nil {
		f.writeError(w, http.StatusBadRequest, err)
		return
	}
	f.writeOK(w, points)
}

func (f *Facade) handleTroves(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := parseInt(q.Get("limit")), parseInt(q.Get("offset"))
	troves, err := f.GetTroves(r.Context(), limit, offset)
	if err != nil {
		f.writeError(w, statusForError(err), err)
		return
	}
	f.writeOK(w, troves)
}

func (f *Facade) handleTrove(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "addr")
	trove, err := f.GetTrove(r.Context(), addr)
	if err != nil {
		f.writeError(w, statusForError(err), err)
		return
	}
	f.writeOK(w, trove)
}

func (f *Facade) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := parseInt(q.Get("limit")), parseInt(q.Get("offset"))
	txs, err := f.GetTransactions(r.Context(), limit, offset)
	if err != nil {
		f.writeError(w, statusForError(err), err)
		return
	}
	f.writeOK(w, txs)
}

func (f *Facade) handleAddressInfo(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "addr")
	info, err := f.GetAddressInfo(r.Context(), addr)
	if err != nil {
		f.writeError(w, statusForError(err), err)
		return
	}
	f.writeOK(w, info)
}

func (f *Facade) handleLendingMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := f.GetLendingMarkets(r.Context())
	if err != nil {
		f.writeError(w, statusForError(err), err)
		return
	}
	f.writeOK(w, markets)
}

func (f *Facade) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	currency := chi.URLParam(r, "currency")
	book, err := f.GetOrderBook(r.Context(), currency)
	if err != nil {
		f.writeError(w, statusForError(err), err)
		return
	}
	f.writeOK(w, book)
}

func (f *Facade) handleHolders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := parseInt(q.Get("limit")), parseInt(q.Get("offset"))
	holders, err := f.GetHolders(r.Context(), limit, offset)
	if err != nil {
		f.writeError(w, statusForError(err), err)
		return
	}
	f.writeOK(w, holders)
}

func parseInt(raw string) int {
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

func parseInt64(raw string) int64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
