package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"RateKeeper/internal/collector"
	"RateKeeper/internal/ratemodel"
	"RateKeeper/internal/recorder"
	"RateKeeper/internal/upkeep"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultHistoryLimit = 20

// Server exposes the keeper state to operators. All routes are read-only.
type Server struct {
	Controller    *upkeep.Controller
	Recorder      recorder.Recorder
	Asset         string
	ReserveFactor uint64 // basis points, used by /v1/rates
	Timeout       time.Duration
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/v1", func(sr chi.Router) {
		sr.Get("/model", s.getModel)
		sr.Get("/upkeep", s.getUpkeep)
		sr.Get("/upkeep/history", s.getHistory)
		sr.Get("/rates", s.getRates)
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// ListenAndServe runs the router on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] admin API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) context(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(parent, timeout)
}

func (s *Server) getModel(w http.ResponseWriter, _ *http.Request) {
	rates := s.Controller.RateModel()
	p := rates.Params()
	wards := rates.Wards()
	out := modelResponse{
		Asset:                         s.Asset,
		OptimalUsageRatio:             p.OptimalUsageRatio.Dec(),
		BaseVariableBorrowRate:        p.BaseVariableBorrowRate.Dec(),
		VariableRateSlope1:            p.VariableRateSlope1.Dec(),
		VariableRateSlope2:            p.VariableRateSlope2.Dec(),
		StableRateSlope1:              p.StableRateSlope1.Dec(),
		StableRateSlope2:              p.StableRateSlope2.Dec(),
		BaseStableRateOffset:          p.BaseStableRateOffset.Dec(),
		StableRateExcessOffset:        p.StableRateExcessOffset.Dec(),
		OptimalStableToTotalDebtRatio: p.OptimalStableToTotalDebtRatio.Dec(),
		Epsilon:                       p.Epsilon.Dec(),
		MPlus:                         p.MPlus,
		MMinus:                        p.MMinus,
		Configurator:                  rates.Configurator().Hex(),
		ActiveUpdater:                 rates.ActiveUpdater().Hex(),
		Wards:                         make([]string, len(wards)),
	}
	for i, a := range wards {
		out.Wards[i] = a.Hex()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getUpkeep(w http.ResponseWriter, _ *http.Request) {
	st, err := s.Controller.Status()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, upkeepResponse{
		Asset:          s.Asset,
		Address:        s.Controller.Address().Hex(),
		Interval:       st.Interval.String(),
		WindowSize:     st.WindowSize,
		Counter:        st.Counter,
		LastCommitTime: st.LastCommitTime,
		NextDueTime:    st.NextDueTime,
		Due:            st.Due,
		WindowAverage:  st.WindowAverage.Dec(),
		ProposedSlope1: st.ProposedSlope1.Dec(),
	})
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	samples := s.Controller.HistorySnapshot()
	out := historyResponse{
		Counter:  s.Controller.Counter(),
		NextSlot: int(s.Controller.Counter() % uint64(len(samples))),
		Samples:  make([]string, len(samples)),
		Runs:     []runResponse{},
	}
	for i, v := range samples {
		out.Samples[i] = v.Dec()
	}
	if s.Recorder != nil {
		runs, err := s.Recorder.RecentRuns(limit)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err)
			return
		}
		for _, run := range runs {
			out.Runs = append(out.Runs, newRunResponse(run))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getRates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r.Context())
	defer cancel()

	snap, err := collector.Read(ctx, s.Controller.Reserve())
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err)
		return
	}
	debt := snap.VariableDebt.Clone()
	debt.Add(debt, snap.StableDebt)
	available := snap.LiquidityTokenSupply.Clone()
	if available.Lt(debt) {
		available.Clear()
	} else {
		available.Sub(available, debt)
	}

	rates, err := s.Controller.RateModel().CalculateInterestRates(ratemodel.InterestRateInputs{
		AvailableLiquidity: available,
		TotalStableDebt:    snap.StableDebt,
		TotalVariableDebt:  snap.VariableDebt,
		ReserveFactor:      s.ReserveFactor,
	})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, ratesResponse{
		Asset:              s.Asset,
		Source:             snap.Source,
		Utilization:        snap.Utilization.Dec(),
		BorrowUsageRatio:   rates.BorrowUsageRatio.Dec(),
		LiquidityRate:      rates.LiquidityRate.Dec(),
		VariableBorrowRate: rates.VariableBorrowRate.Dec(),
		StableBorrowRate:   rates.StableBorrowRate.Dec(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WARN] admin: encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}
