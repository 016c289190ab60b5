// Package orchestrator owns the joint State and every updater, draining
// tsqueue.Queue and routing each Message to its updater in spec.md §5's
// order: within a single timestamp, (IMU predict-driver) -> (IMU update)
// -> (tracker batches) -> (fiducials).
//
// Grounded on the teacher's server/udp.go UdpServer struct: it owns the
// pipeline, a mutex, per-tag state maps, and a routing switch keyed on
// packet type, generalized here to route tsqueue.Message variants to the
// three updaters instead of UWB ranging packets to anchor state.
package orchestrator

import (
	"sync"
	"time"

	"ekfcal-go/datalog"
	"ekfcal-go/ekf/fiducialupdate"
	"ekfcal-go/ekf/imuupdate"
	"ekfcal-go/ekf/msckfupdate"
	"ekfcal-go/ekf/process"
	"ekfcal-go/ekf/registrar"
	"ekfcal-go/ekf/state"
	"ekfcal-go/ekferr"
	"ekfcal-go/logging"
	"ekfcal-go/mathkit"
	"ekfcal-go/statusweb"
	"ekfcal-go/tracker"
	"ekfcal-go/tsqueue"

	"gonum.org/v1/gonum/mat"
)

// Config bundles the tunables spec.md §5 gives the Orchestrator: a
// lateness tolerance for dropping stale messages, and a soft per-message
// processing deadline that only triggers a warning, never an abort.
type Config struct {
	LatenessTolerance time.Duration
	MessageDeadline   time.Duration
}

// Orchestrator drains a tsqueue.Queue and applies each Message to the
// shared State via its updater (spec.md §5's single-writer model: exactly
// one goroutine, this one, ever mutates State).
type Orchestrator struct {
	cfg Config
	log *logging.Logger

	state    *state.State
	reg      *registrar.Registrar
	proc     *process.Model
	imuUpd   *imuupdate.Updater
	msckfUpd *msckfupdate.Updater
	fidUpd   *fiducialupdate.Updater

	trackers map[string]*tracker.Tracker // keyed by camera id

	queue *tsqueue.Queue

	mu       sync.Mutex
	shutdown bool

	logger       *datalog.Logger
	bodyDataRate float64
	lastBodyLog  float64
	loggedOnce   bool

	statusHub *statusweb.Hub
}

// New assembles an Orchestrator around an already-registered State (sensor
// registration happens before the first message is drained, per spec.md
// §4.3's seal-on-first-update rule).
func New(cfg Config, log *logging.Logger, s *state.State, proc *process.Model, imuUpd *imuupdate.Updater, msckfUpd *msckfupdate.Updater, fidUpd *fiducialupdate.Updater, trackers map[string]*tracker.Tracker, q *tsqueue.Queue) *Orchestrator {
	if log == nil {
		log = logging.Nop()
	}
	return &Orchestrator{
		cfg:      cfg,
		log:      log,
		state:    s,
		reg:      registrar.New(s),
		proc:     proc,
		imuUpd:   imuUpd,
		msckfUpd: msckfUpd,
		fidUpd:   fidUpd,
		trackers: trackers,
		queue:    q,
	}
}

// AttachLogger enables spec.md §6's data_logging_on CSV output: a
// body-truth row is written at bodyDataRate as messages advance
// CurrentTime, a board row is written on every successful fiducial update,
// and an MSCKF row on every successful update of tracks that a camera's
// tracker terminated on a frame. KindTrackerBatch messages write no MSCKF
// row.
func (o *Orchestrator) AttachLogger(l *datalog.Logger, bodyDataRate float64) {
	o.logger = l
	o.bodyDataRate = bodyDataRate
}

func (o *Orchestrator) maybeLogBodyTruth() {
	if o.logger == nil || o.bodyDataRate <= 0 {
		return
	}
	if o.loggedOnce && o.state.CurrentTime-o.lastBodyLog < 1.0/o.bodyDataRate {
		return
	}
	if err := o.logger.BodyTruth.WriteRow(datalog.FormatFloats(BodyTruthRow(o.state)...)); err != nil {
		o.log.Warnf("body truth log write failed: %v", err)
		return
	}
	o.lastBodyLog = o.state.CurrentTime
	o.loggedOnce = true
}

// AttachStatusHub wires a read-only websocket broadcast target: every
// message applied without error triggers a Snapshot broadcast (stale or
// failed messages do not), one
// hop after the mutation that produced it (spec.md §5's "no cyclic
// ownership" — the hub never feeds back into State).
func (o *Orchestrator) AttachStatusHub(h *statusweb.Hub) {
	o.statusHub = h
}

func (o *Orchestrator) broadcastStatus() {
	if o.statusHub == nil {
		return
	}
	b := o.state.Body
	snap := statusweb.Snapshot{
		Time: o.state.CurrentTime,
		Pos:  b.Pos,
		Vel:  b.Vel,
		Quat: [4]float64{b.Quat.W, b.Quat.X, b.Quat.Y, b.Quat.Z},
	}
	if o.state.Cov != nil {
		n, _ := o.state.Cov.Dims()
		snap.CovDiag = make([]float64, n)
		for i := 0; i < n; i++ {
			snap.CovDiag[i] = o.state.Cov.At(i, i)
		}
	}
	if err := o.statusHub.Broadcast(snap); err != nil {
		o.log.Warnf("status broadcast failed: %v", err)
	}
}

// Enqueue pushes a Message onto the Orchestrator's queue. Safe for
// concurrent use by transport producers (spec.md §5).
func (o *Orchestrator) Enqueue(msg Message) {
	o.queue.Push(msg)
}

// Shutdown requests the run loop stop between messages (spec.md §5:
// "observes a shutdown flag between messages; in-flight numerical kernels
// are not cancelable").
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	o.shutdown = true
	o.mu.Unlock()
}

func (o *Orchestrator) shouldStop() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.shutdown
}

// Run drains the queue until it is empty or Shutdown is called, applying
// each Message in turn. It returns the number of messages applied.
func (o *Orchestrator) Run() int {
	n := 0
	for !o.shouldStop() {
		msg, ok := o.queue.Pop()
		if !ok {
			return n
		}
		o.apply(msg)
		n++
	}
	return n
}

func (o *Orchestrator) apply(msg Message) {
	start := time.Now()
	defer o.checkDeadline(start, msg)

	if msg.Timestamp < o.state.CurrentTime {
		late := o.state.CurrentTime - msg.Timestamp
		if o.cfg.LatenessTolerance > 0 && late > o.cfg.LatenessTolerance.Seconds() {
			o.log.Warnf("dropping stale message from %q: %v", msg.SensorID, ekferr.ErrStaleMessage)
			return
		}
	}

	var err error
	switch msg.Kind {
	case tsqueue.KindImuPredictDriver, tsqueue.KindImuSample:
		err = o.applyImu(msg)
	case tsqueue.KindFrameSample:
		o.applyFrame(msg)
	case tsqueue.KindTrackerBatch:
		err = o.applyTrackerBatch(msg)
	case tsqueue.KindFiducialDetection:
		err = o.applyFiducial(msg)
	}
	if err != nil {
		if ekferr.Fatal(err) {
			o.log.Errorf("fatal error applying message from %q: %v", msg.SensorID, err)
			o.Shutdown()
			return
		}
		o.log.Warnf("dropping message from %q: %v", msg.SensorID, err)
		return
	}
	o.reg.Seal()
	o.maybeLogBodyTruth()
	o.broadcastStatus()
}

func (o *Orchestrator) applyImu(msg Message) error {
	imu := msg.Imu
	return o.imuUpd.Apply(o.state, msg.SensorID, msg.Timestamp, imu.Acc, imu.Omg, diag3x2(imu.AccCov, imu.OmgCov))
}

// applyFrame appends a camera clone for the new frame and feeds its raw
// detections into that camera's tracker, per spec.md §4.7 (frames do not
// touch State directly beyond the clone append; tracks are handed off on
// termination).
func (o *Orchestrator) applyFrame(msg Message) {
	o.proc.Predict(o.state, msg.Timestamp)
	o.state.AppendClone(msg.SensorID, msg.Frame.FrameID)

	tr, ok := o.trackers[msg.SensorID]
	if !ok {
		return
	}
	terminated := tr.ProcessFrame(*msg.Frame)
	if len(terminated) == 0 {
		return
	}
	o.processMsckfBatch(msg.SensorID, msg.Timestamp, terminated)
}

func (o *Orchestrator) applyTrackerBatch(msg Message) error {
	o.proc.Predict(o.state, msg.Timestamp)
	return o.msckfUpd.ProcessBatch(o.state, msg.SensorID, msg.Tracker.Tracks)
}

// processMsckfBatch runs the MSCKF update and, when a logger is attached,
// appends a per-camera timing row: track count and post-update state size
// stand in for the source's separate body/camera update-delta norms, since
// ProcessBatch folds the whole batch into a single Kalman update and does
// not expose per-block deltas.
func (o *Orchestrator) processMsckfBatch(camID string, t float64, tracks []tsqueue.FeatureTrack) {
	start := time.Now()
	err := o.msckfUpd.ProcessBatch(o.state, camID, tracks)
	elapsedUs := time.Since(start).Microseconds()
	if err != nil {
		o.log.Warnf("dropping msckf batch for %q: %v", camID, err)
		return
	}
	if o.logger == nil {
		return
	}
	w, werr := o.logger.MsckfWriter(camID)
	if werr != nil {
		o.log.Warnf("msckf log open failed for %q: %v", camID, werr)
		return
	}
	row := datalog.FormatFloats(t, float64(len(tracks)), float64(o.state.StateSize()), float64(elapsedUs))
	if werr := w.WriteRow(row); werr != nil {
		o.log.Warnf("msckf log write failed for %q: %v", camID, werr)
	}
}

func (o *Orchestrator) applyFiducial(msg Message) error {
	o.proc.Predict(o.state, msg.Timestamp)
	f := msg.Fiducial
	quat := quatFromArr(f.QuatBoard)
	cov := covFromArr(f.Cov)
	if err := o.fidUpd.Apply(o.state, msg.SensorID, f.BoardID, f.PosBoard, quat, cov); err != nil {
		return err
	}
	o.logBoardDetection(f)
	return nil
}

func (o *Orchestrator) logBoardDetection(f *tsqueue.FiducialDetection) {
	if o.logger == nil {
		return
	}
	row := datalog.FormatFloats(float64(f.BoardID))
	row = append(row, datalog.FormatFloats(f.PosBoard[:]...)...)
	row = append(row, datalog.FormatFloats(f.QuatBoard[:]...)...)
	if err := o.logger.Board.WriteRow(row); err != nil {
		o.log.Warnf("board log write failed: %v", err)
	}
}

func (o *Orchestrator) checkDeadline(start time.Time, msg Message) {
	if o.cfg.MessageDeadline <= 0 {
		return
	}
	if elapsed := time.Since(start); elapsed > o.cfg.MessageDeadline {
		o.log.Warnf("message from %q exceeded its processing deadline: %v > %v", msg.SensorID, elapsed, o.cfg.MessageDeadline)
	}
}

// Message is an alias kept local to avoid every orchestrator caller
// importing tsqueue just to name the type.
type Message = tsqueue.Message

// diag3x2 builds the 6x6 block-diagonal covariance imuupdate.Apply expects
// from the two 3-vectors of per-axis variance carried on the wire message.
func diag3x2(accCov, omgCov [3]float64) *mat.Dense {
	m := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		m.Set(i, i, accCov[i])
		m.Set(3+i, 3+i, omgCov[i])
	}
	return m
}

func quatFromArr(a [4]float64) mathkit.Quaternion {
	return mathkit.Quaternion{W: a[0], X: a[1], Y: a[2], Z: a[3]}
}

func covFromArr(a [36]float64) *mat.Dense {
	m := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			m.Set(i, j, a[i*6+j])
		}
	}
	return m
}
