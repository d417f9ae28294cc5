package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"RateKeeper/internal/calculator"
	"RateKeeper/internal/collector"
	"RateKeeper/internal/metrics"
	"RateKeeper/internal/model"
	"RateKeeper/internal/notifier"
	"RateKeeper/internal/ratemodel"
	"RateKeeper/internal/recorder"
	"RateKeeper/internal/state"
	"RateKeeper/internal/upkeep"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const historyLimit = 10

// Scheduler drives the upkeep controller from cron.
type Scheduler struct {
	Cron          *cron.Cron
	Controller    *upkeep.Controller
	Collector     *collector.Collector
	Store         *state.Store
	Notifier      notifier.Notifier
	Recorder      recorder.Recorder
	ReserveFactor uint64
	Ctx           context.Context

	mu  sync.Mutex // one tick at a time
	now func() time.Time
}

// NewScheduler creates a new Scheduler. store may be nil.
func NewScheduler(ctx context.Context, ctrl *upkeep.Controller, col *collector.Collector, store *state.Store, n notifier.Notifier, rec recorder.Recorder) *Scheduler {
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds()),
		Controller: ctrl,
		Collector:  col,
		Store:      store,
		Notifier:   n,
		Recorder:   rec,
		Ctx:        ctx,
		now:        time.Now,
	}
}

// RegisterAll registers the upkeep check and the periodic report.
func (s *Scheduler) RegisterAll(checkCron, reportCron string) error {
	if _, err := s.Cron.AddFunc(checkCron, func() { s.RunCheck() }); err != nil {
		return fmt.Errorf("register check task: %w", err)
	}
	if reportCron != "" {
		if _, err := s.Cron.AddFunc(reportCron, s.reportTask); err != nil {
			return fmt.Errorf("register report task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	asset := s.asset()
	metrics.Slope1.WithLabelValues(asset).Set(calculator.ToFloat(s.Controller.RateModel().VariableRateSlope1()))
	metrics.Counter.WithLabelValues(asset).Set(float64(s.Controller.Counter()))
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// WatchRateModel records every rate model event and keeps the slope gauge current.
func (s *Scheduler) WatchRateModel() {
	asset, rec := s.asset(), s.Recorder
	s.Controller.RateModel().Subscribe(func(evt model.RateEvent) {
		if evt.Kind == model.EventSlope1Updated {
			metrics.Slope1.WithLabelValues(asset).Set(calculator.ToFloat(evt.New))
		}
		if err := rec.RecordRateEvent(&evt); err != nil {
			log.Printf("[ERROR] record rate event: %v", err)
		}
	})
}

// RunCheck polls the controller and commits its proposal when due.
func (s *Scheduler) RunCheck() *model.UpkeepRun {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset := s.asset()
	run := &model.UpkeepRun{ID: uuid.NewString(), Slot: -1, StartedAt: s.now()}

	proposal, err := s.Controller.IsUpkeepDue()
	if err != nil {
		log.Printf("[ERROR] upkeep check: %v", err)
		return s.fail(run, "proposal", err)
	}
	run.WindowAverage = proposal.WindowAverage
	run.ProposedSlope1 = proposal.Slope
	run.PreviousSlope1 = s.Controller.RateModel().VariableRateSlope1()
	run.Counter = s.Controller.Counter()
	metrics.ChecksTotal.WithLabelValues(asset, fmt.Sprint(proposal.Due)).Inc()
	metrics.WindowAverage.WithLabelValues(asset).Set(calculator.ToFloat(proposal.WindowAverage))

	if !proposal.Due {
		run.Outcome = model.OutcomeNotDue
		return run
	}

	log.Printf("[INFO] upkeep due: window average %s, proposing slope1 %s (%s)",
		proposal.WindowAverage.Dec(), proposal.Slope.Dec(), proposal.Branch)
	start := time.Now()
	receipt, err := s.Controller.PerformUpkeep(s.Ctx, proposal.Encode())
	metrics.CommitLatency.WithLabelValues(asset).Observe(time.Since(start).Seconds())
	run.Duration = s.now().Sub(run.StartedAt)
	if err != nil {
		if errors.Is(err, upkeep.ErrNotDue) {
			// another caller committed between check and perform
			log.Printf("[WARN] upkeep no longer due: %v", err)
			run.Outcome = model.OutcomeNotDue
			return run
		}
		log.Printf("[ERROR] perform upkeep: %v", err)
		return s.fail(run, reason(err), err)
	}

	run.Outcome = model.OutcomeCommitted
	run.Counter = receipt.Counter
	run.Slot = receipt.Slot
	run.Utilization = receipt.Utilization
	run.PreviousSlope1 = receipt.PreviousSlope1
	run.ProposedSlope1 = receipt.Slope1

	metrics.CommitsTotal.WithLabelValues(asset).Inc()
	metrics.Counter.WithLabelValues(asset).Set(float64(receipt.Counter))
	metrics.Utilization.WithLabelValues(asset).Set(calculator.ToFloat(receipt.Utilization))

	if s.Store != nil {
		if err := s.Store.Save(); err != nil {
			log.Printf("[ERROR] %v", err)
			metrics.StateSaveErrors.WithLabelValues(asset).Inc()
			s.trySend(notifier.FormatSaveFailure(asset, run, err))
		}
	}
	if err := s.Recorder.RecordRun(run); err != nil {
		log.Printf("[ERROR] record upkeep run: %v", err)
	}
	s.trySend(notifier.FormatCommitReport(asset, run))
	return run
}

func (s *Scheduler) fail(run *model.UpkeepRun, why string, err error) *model.UpkeepRun {
	run.Outcome = model.OutcomeFailed
	run.Error = err.Error()
	metrics.CommitErrors.WithLabelValues(s.asset(), why).Inc()
	if recErr := s.Recorder.RecordRun(run); recErr != nil {
		log.Printf("[ERROR] record upkeep run: %v", recErr)
	}
	s.trySend(notifier.FormatFailure(s.asset(), run))
	return run
}

func reason(err error) string {
	switch {
	case errors.Is(err, ratemodel.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, upkeep.ErrMalformedProposal):
		return "malformed"
	case errors.Is(err, calculator.ErrOverflow), errors.Is(err, calculator.ErrUnderflow):
		return "arithmetic"
	default:
		return "reserve"
	}
}

func (s *Scheduler) reportTask() {
	log.Println("[INFO] running report task")
	msg, err := s.ratesReport()
	if err != nil {
		log.Printf("[ERROR] report: %v", err)
		s.trySend(notifier.FormatError("Reserve read failed", err))
		return
	}
	st, err := s.Controller.Status()
	if err != nil {
		log.Printf("[ERROR] report status: %v", err)
		return
	}
	s.trySend(notifier.FormatStatus(s.asset(), st, s.Controller.RateModel().Params()) + "\n" + msg)
}

// ratesReport samples the reserve, records the sample and prices it.
func (s *Scheduler) ratesReport() (string, error) {
	ctx, cancel := context.WithTimeout(s.Ctx, 30*time.Second)
	defer cancel()
	snap, err := s.Collector.Collect(ctx)
	if err != nil {
		return "", err
	}
	if err := s.Recorder.RecordSample(snap); err != nil {
		log.Printf("[ERROR] record utilization sample: %v", err)
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
		return "", fmt.Errorf("calculate rates: %w", err)
	}
	return notifier.FormatRates(s.asset(), snap, rates), nil
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "/status":
		st, err := s.Controller.Status()
		if err != nil {
			return notifier.FormatError("status unavailable", err)
		}
		return notifier.FormatStatus(s.asset(), st, s.Controller.RateModel().Params())
	case "/history":
		runs, err := s.Recorder.RecentRuns(historyLimit)
		if err != nil {
			return notifier.FormatError("history unavailable", err)
		}
		return notifier.FormatHistory(runs)
	case "/rates":
		msg, err := s.ratesReport()
		if err != nil {
			return notifier.FormatError("rates unavailable", err)
		}
		return msg
	case "/check":
		run := s.RunCheck()
		if run.Outcome == model.OutcomeNotDue {
			st, err := s.Controller.Status()
			if err != nil {
				return "Upkeep not due."
			}
			return fmt.Sprintf("Upkeep not due until %s.", st.NextDueTime.UTC().Format("2006-01-02 15:04"))
		}
		return "" // commit and failure reports are pushed by RunCheck
	default:
		return notifier.HelpText
	}
}

func (s *Scheduler) asset() string {
	if s.Collector != nil && s.Collector.Asset != "" {
		return s.Collector.Asset
	}
	return "default"
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
