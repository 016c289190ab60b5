// Package tsqueue implements the stable, mutex-guarded merge of measurements
// from N asynchronous sources into monotone timestamp order (spec.md §2's
// TimeOrderedQueue), grounded on the teacher's rbc/sender.go channel-worker
// pattern and server/udp.go's mutex-guarded shared state.
package tsqueue

// Kind tags the sum-type variant carried by a Message, per the design note
// in spec.md §9 ("tagged variant over {Imu, Camera, Fiducial}"). The five
// values are ordered to match spec.md §5's fixed intra-timestamp processing
// sequence: (IMU predict-driver) -> (IMU update) -> (tracker/frame batches)
// -> (fiducials). KindImuPredictDriver is split out from KindImuSample
// because the single `use_for_prediction` IMU must always drive the
// ProcessModel's prediction for a timestamp before any other sensor at that
// same timestamp is applied, including a second, Kalman-updated IMU.
type Kind int

const (
	KindImuPredictDriver Kind = iota
	KindImuSample
	KindFrameSample
	KindTrackerBatch
	KindFiducialDetection
)

// FeaturePoint is one observation of a tracked feature in a single frame.
type FeaturePoint struct {
	FrameID uint64
	U, V    float64
}

// FeatureTrack is an ordered list of FeaturePoints sharing one feature id.
type FeatureTrack struct {
	FeatureID uint64
	Points    []FeaturePoint
}

// ImuSample carries one IMU measurement (spec.md §3).
type ImuSample struct {
	Acc    [3]float64
	AccCov [3]float64 // diagonal
	Omg    [3]float64
	OmgCov [3]float64 // diagonal
}

// FrameSample carries one image frame, or its synthetic equivalent, keyed
// by frame id for downstream clone bookkeeping.
type FrameSample struct {
	FrameID  uint64
	Features []FeaturePoint // raw detections this frame, pre-tracking
}

// TrackerBatch carries feature tracks that terminated this timestamp.
type TrackerBatch struct {
	Tracks []FeatureTrack
}

// FiducialDetection carries a board-pose estimate with its covariance
// (row-major 6x6, spec.md §3).
type FiducialDetection struct {
	BoardID  uint64
	PosBoard [3]float64
	QuatBoard [4]float64 // w,x,y,z
	Cov      [36]float64
}

// Message is the sum type flowing through the queue and Orchestrator
// (spec.md §3). Timestamp is the primary sort key; ties break by Kind,
// then by SensorID, then by arrival order.
type Message struct {
	Kind      Kind
	SensorID  string
	Timestamp float64

	Imu      *ImuSample
	Frame    *FrameSample
	Tracker  *TrackerBatch
	Fiducial *FiducialDetection
}
