package sim

import (
	"math/rand"

	"ekfcal-go/ekf/msckfupdate"
	"ekfcal-go/mathkit"
	"ekfcal-go/tsqueue"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// randSource adapts *rand.Rand to gonum/stat/distuv's Src interface, whose
// Seed takes a uint64 while math/rand.Rand's takes an int64.
type randSource struct{ *rand.Rand }

func (r randSource) Seed(seed uint64) { r.Rand.Seed(int64(seed)) }

// ErrorParams holds spec.md §6's per-sensor `*_error` standard deviations.
// A zero value combined with NoErrors disables sampling entirely.
type ErrorParams struct {
	TimeStd    float64
	AccStd     float64
	OmgStd     float64
	PosStd     float64
	AngStd     float64
	AccBiasStd float64
	OmgBiasStd float64
}

// ImuGen synthesizes ImuSamples from Truth by evaluating the analytic
// acceleration/angular-rate at the IMU's extrinsic offset and adding
// Gaussian noise, grounded on
// _examples/original_source/src/infrastructure/sim/TruthEngineCyclic.cpp's
// downstream sensor-generation callers and westphae-goflying/sim's
// situationSim.go noise-injection pattern (gonum stat/distuv driven by an
// injected *rand.Rand so runs are reproducible under sim_params.seed).
type ImuGen struct {
	SensorID  string
	PosOffset [3]float64
	QuatOffset mathkit.Quaternion
	Err       ErrorParams
	NoErrors  bool
	Rng       *rand.Rand

	// IsDriver marks the single use_for_prediction IMU (spec.md §6):
	// Generate tags its messages KindImuPredictDriver instead of
	// KindImuSample so tsqueue orders them ahead of every other
	// same-timestamp sensor, including a second, Kalman-updated IMU.
	IsDriver bool

	accBias [3]float64
	omgBias [3]float64
}

func (g *ImuGen) sample(std float64) float64 {
	if g.NoErrors || std <= 0 {
		return 0
	}
	return distuv.Normal{Mu: 0, Sigma: std, Src: randSource{g.Rng}}.Rand()
}

// Generate evaluates truth at time t, transforms into the IMU frame per
// spec.md §4.4's ĥ formula run in reverse, and adds noise/bias walk.
func (g *ImuGen) Generate(truth Truth, t float64) tsqueue.Message {
	acc := truth.Acceleration(t)
	omg := truth.AngularRate(t)
	alpha := truth.AngularAcceleration(t)

	p := g.PosOffset
	wxp := cross(omg, p)
	wxwxp := cross(omg, wxp)
	axp := cross(alpha, p)
	accAtImu := addVec(acc, addVec(axp, wxwxp))

	r := g.QuatOffset.ToMat()
	accBody := applyRot(r, accAtImu)
	omgBody := applyRot(r, omg)

	for i := 0; i < 3; i++ {
		g.accBias[i] += g.sample(g.Err.AccBiasStd)
		g.omgBias[i] += g.sample(g.Err.OmgBiasStd)
	}

	var accOut, omgOut [3]float64
	for i := 0; i < 3; i++ {
		accOut[i] = accBody[i] + g.accBias[i] + g.sample(g.Err.AccStd)
		omgOut[i] = omgBody[i] + g.omgBias[i] + g.sample(g.Err.OmgStd)
	}

	sample := &tsqueue.ImuSample{
		Acc:    accOut,
		AccCov: [3]float64{sq(g.Err.AccStd), sq(g.Err.AccStd), sq(g.Err.AccStd)},
		Omg:    omgOut,
		OmgCov: [3]float64{sq(g.Err.OmgStd), sq(g.Err.OmgStd), sq(g.Err.OmgStd)},
	}
	kind := tsqueue.KindImuSample
	if g.IsDriver {
		kind = tsqueue.KindImuPredictDriver
	}
	return tsqueue.Message{
		Kind:      kind,
		SensorID:  g.SensorID,
		Timestamp: t + g.sample(g.Err.TimeStd),
		Imu:       sample,
	}
}

// FiducialGen synthesizes board-pose detections in a camera frame from
// Truth plus a known board pose in the global frame.
type FiducialGen struct {
	SensorID   string
	BoardID    uint64
	PosOffset  [3]float64
	QuatOffset mathkit.Quaternion
	BoardPos   [3]float64
	BoardQuat  mathkit.Quaternion
	Err        ErrorParams
	NoErrors   bool
	Rng        *rand.Rand
}

func (g *FiducialGen) sample(std float64) float64 {
	if g.NoErrors || std <= 0 {
		return 0
	}
	return distuv.Normal{Mu: 0, Sigma: std, Src: randSource{g.Rng}}.Rand()
}

// Generate composes body pose ∘ camera extrinsic ∘ board global pose into
// the camera-frame observation, the inverse of fiducialupdate.Apply's
// predicted measurement, then adds noise.
func (g *FiducialGen) Generate(truth Truth, t float64) tsqueue.Message {
	bodyPos := truth.Position(t)
	bodyQuat := truth.AngularPosition(t)

	rBody := bodyQuat.ToMat()
	camPosG := addVec(bodyPos, applyRot(rBody, g.PosOffset))
	camQuatG := bodyQuat.Mul(g.QuatOffset)

	rCam := camQuatG.ToMat()
	relPos := applyRotT(rCam, subVec(g.BoardPos, camPosG))
	relQuat := camQuatG.Conjugate().Mul(g.BoardQuat)

	var noisyPos [3]float64
	for i := 0; i < 3; i++ {
		noisyPos[i] = relPos[i] + g.sample(g.Err.PosStd)
	}
	errRot := [3]float64{g.sample(g.Err.AngStd), g.sample(g.Err.AngStd), g.sample(g.Err.AngStd)}
	noisyQuat := mathkit.FromRotVec(errRot[:]).Mul(relQuat)

	var cov [36]float64
	for i := 0; i < 3; i++ {
		cov[i*6+i] = sq(g.Err.PosStd)
		cov[(i+3)*6+(i+3)] = sq(g.Err.AngStd)
	}

	return tsqueue.Message{
		Kind:      tsqueue.KindFiducialDetection,
		SensorID:  g.SensorID,
		Timestamp: t + g.sample(g.Err.TimeStd),
		Fiducial: &tsqueue.FiducialDetection{
			BoardID:   g.BoardID,
			PosBoard:  noisyPos,
			QuatBoard: [4]float64{noisyQuat.W, noisyQuat.X, noisyQuat.Y, noisyQuat.Z},
			Cov:       cov,
		},
	}
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func addVec(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func subVec(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func applyRot(r *mat.Dense, v [3]float64) [3]float64 {
	return [3]float64{
		r.At(0, 0)*v[0] + r.At(0, 1)*v[1] + r.At(0, 2)*v[2],
		r.At(1, 0)*v[0] + r.At(1, 1)*v[1] + r.At(1, 2)*v[2],
		r.At(2, 0)*v[0] + r.At(2, 1)*v[1] + r.At(2, 2)*v[2],
	}
}

func applyRotT(r *mat.Dense, v [3]float64) [3]float64 {
	return [3]float64{
		r.At(0, 0)*v[0] + r.At(1, 0)*v[1] + r.At(2, 0)*v[2],
		r.At(0, 1)*v[0] + r.At(1, 1)*v[1] + r.At(2, 1)*v[2],
		r.At(0, 2)*v[0] + r.At(1, 2)*v[1] + r.At(2, 2)*v[2],
	}
}

// CameraGen projects known global feature points into a camera frame each
// frame, distorting through the camera's intrinsics and adding pixel noise,
// grounded on ekf/msckfupdate's inverse (undistort + triangulate) pipeline
// run forward.
type CameraGen struct {
	PosOffset  [3]float64
	QuatOffset mathkit.Quaternion
	Intrinsics msckfupdate.Intrinsics
	PixelStd   float64
	NoErrors   bool
	Rng        *rand.Rand
}

// Frame projects featuresG (global-frame 3-vectors) into this camera's
// frame at time t and returns only those in front of the camera.
func (g *CameraGen) Frame(truth Truth, t float64, frameID uint64, featuresG [][3]float64) tsqueue.FrameSample {
	bodyPos := truth.Position(t)
	bodyQuat := truth.AngularPosition(t)
	rBody := bodyQuat.ToMat()

	camPosG := addVec(bodyPos, applyRot(rBody, g.PosOffset))
	camQuatG := bodyQuat.Mul(g.QuatOffset)
	rCam := camQuatG.ToMat()

	var points []tsqueue.FeaturePoint
	for _, f := range featuresG {
		pCam := applyRotT(rCam, subVec(f, camPosG))
		if pCam[2] <= 0 {
			continue
		}
		x := pCam[0] / pCam[2]
		y := pCam[1] / pCam[2]
		u, v := msckfupdate.Distort(x, y, g.Intrinsics)
		u += g.sample(g.PixelStd)
		v += g.sample(g.PixelStd)
		points = append(points, tsqueue.FeaturePoint{FrameID: frameID, U: u, V: v})
	}
	return tsqueue.FrameSample{FrameID: frameID, Features: points}
}

func (g *CameraGen) sample(std float64) float64 {
	if g.NoErrors || std <= 0 {
		return 0
	}
	return distuv.Normal{Mu: 0, Sigma: std, Src: randSource{g.Rng}}.Rand()
}

func sq(v float64) float64 { return v * v }

