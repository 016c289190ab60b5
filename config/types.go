// Package config parses and validates the YAML configuration tree from
// spec.md §6. Parsing follows the teacher's fusion/config_parser.go shape
// (parse into typed structs, validate, return errors instead of panicking);
// the wire format itself is YAML (gopkg.in/yaml.v3) rather than the
// teacher's XML, since the spec mandates YAML and no YAML library appears
// anywhere else in the retrieved corpus (see DESIGN.md).
package config

// Root is the top-level YAML document (spec.md §6).
type Root struct {
	DebugLogLevel  int           `yaml:"debug_log_level"`
	DataLoggingOn  bool          `yaml:"data_logging_on"`
	BodyDataRate   float64       `yaml:"body_data_rate"`
	FilterParams   FilterParams  `yaml:"filter_params"`
	ImuList        []string      `yaml:"imu_list"`
	CameraList     []string      `yaml:"camera_list"`
	TrackerList    []string      `yaml:"tracker_list"`
	FiducialList   []string      `yaml:"fiducial_list"`
	Imu            map[string]Imu      `yaml:"imu"`
	Camera         map[string]Camera   `yaml:"camera"`
	Tracker        map[string]Tracker  `yaml:"tracker"`
	Fiducial       map[string]Fiducial `yaml:"fiducial"`
	SimParams      *SimParams    `yaml:"sim_params"`
}

// FilterParams holds the process-noise spectral density (18 doubles,
// spec.md §4.2's body-block Q).
type FilterParams struct {
	ProcessNoise [18]float64 `yaml:"process_noise"`
}

// Imu is the per-IMU sub-tree under `imu.<name>` (spec.md §6).
type Imu struct {
	IsExtrinsic  bool      `yaml:"is_extrinsic"`
	IsIntrinsic  bool      `yaml:"is_intrinsic"`
	Rate         float64   `yaml:"rate"`
	Topic        string    `yaml:"topic"`
	Variance     []float64 `yaml:"variance"` // len 6 or 12
	PosIInB      [3]float64 `yaml:"pos_i_in_b"`
	AngIToB      [4]float64 `yaml:"ang_i_to_b"` // quat w,x,y,z
	AccBias      [3]float64 `yaml:"acc_bias"`
	OmgBias      [3]float64 `yaml:"omg_bias"`
	AccBiasStability float64 `yaml:"acc_bias_stability"`
	OmgBiasStability float64 `yaml:"omg_bias_stability"`
	PosBiasStability float64 `yaml:"pos_bias_stability"`
	AngBiasStability float64 `yaml:"ang_bias_stability"`
	UseForPrediction bool    `yaml:"use_for_prediction"`
}

// Intrinsics holds the camera pinhole+distortion model (spec.md §6).
type Intrinsics struct {
	F         float64 `yaml:"F"`
	Cx        float64 `yaml:"c_x"`
	Cy        float64 `yaml:"c_y"`
	K1        float64 `yaml:"k_1"`
	K2        float64 `yaml:"k_2"`
	P1        float64 `yaml:"p_1"`
	P2        float64 `yaml:"p_2"`
	PixelSize float64 `yaml:"pixel_size"`
}

// Camera is the per-camera sub-tree under `camera.<name>`.
type Camera struct {
	Rate       float64    `yaml:"rate"`
	PosCInB    [3]float64 `yaml:"pos_c_in_b"`
	AngCToB    [4]float64 `yaml:"ang_c_to_b"`
	Variance   []float64  `yaml:"variance"`
	TrackerRef string     `yaml:"tracker"`
	FiducialRef string    `yaml:"fiducial"`
	Intrinsics Intrinsics `yaml:"intrinsics"`
}

// Tracker is the per-tracker sub-tree.
type Tracker struct {
	PixelError      float64 `yaml:"pixel_error"`
	MinTrackLength  int     `yaml:"min_track_length"`
	MaxTrackLength  int     `yaml:"max_track_length"`
	MinFeatDist     float64 `yaml:"min_feat_dist"`
}

// Fiducial is the per-fiducial sub-tree (board geometry + variance).
type Fiducial struct {
	BoardWidth  float64   `yaml:"board_width"`
	BoardHeight float64   `yaml:"board_height"`
	Variance    []float64 `yaml:"variance"` // len 6
	PosInB      [3]float64 `yaml:"pos_f_in_b"`
	AngInB      [4]float64 `yaml:"ang_f_to_b"`
}

// SensorError describes the per-channel noise injected by the simulator for
// one sensor (spec.md §6's `{time,acc,omg,pos,ang,{acc,omg}_bias}_error`
// keys); zero value means "no error configured for this channel".
type SensorError struct {
	Time    float64 `yaml:"time_error"`
	Acc     float64 `yaml:"acc_error"`
	Omg     float64 `yaml:"omg_error"`
	Pos     float64 `yaml:"pos_error"`
	Ang     float64 `yaml:"ang_error"`
	AccBias float64 `yaml:"acc_bias_error"`
	OmgBias float64 `yaml:"omg_bias_error"`
}

// SimParams is the `sim_params` sub-tree (spec.md §6).
type SimParams struct {
	Seed          uint64                  `yaml:"seed"`
	UseSeed       bool                    `yaml:"use_seed"`
	NoErrors      bool                    `yaml:"no_errors"`
	MaxTime       float64                 `yaml:"max_time"`
	TruthType     string                  `yaml:"truth_type"` // "cyclic" | "spline"
	StationaryTime float64                `yaml:"stationary_time"`
	SensorErrors  map[string]SensorError  `yaml:"sensor_errors"`
}
