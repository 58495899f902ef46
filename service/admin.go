package service

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"shardbook/domain/orderbook"
)

// Admin serves read-only engine state. Nothing here touches a live book;
// it reads the workers' advisory stats.
type Admin struct {
	engine   *Engine
	gatherer prometheus.Gatherer
	log      logrus.FieldLogger
}

func NewAdmin(e *Engine, g prometheus.Gatherer, log logrus.FieldLogger) *Admin {
	return &Admin{engine: e, gatherer: g, log: log.WithField("component", "admin")}
}

func (a *Admin) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/health", a.health).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", a.stats).Methods(http.MethodGet)
	r.HandleFunc("/api/symbols/{symbol:[0-9]+}/stats", a.symbolStats).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func (a *Admin) health(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Admin) stats(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, a.engine.Stats())
}

func (a *Admin) symbolStats(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(mux.Vars(r)["symbol"], 10, 32)
	if err != nil {
		http.Error(w, "invalid symbol", http.StatusBadRequest)
		return
	}
	worker := a.engine.Worker(orderbook.Symbol(n))
	if worker == nil {
		http.Error(w, "unknown symbol", http.StatusNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, worker.Stats())
}

func (a *Admin) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.WithError(err).Warn("write response")
	}
}
