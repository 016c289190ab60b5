package orchestrator

import "ekfcal-go/ekf/state"

// BodyTruthRow flattens the body/IMU/camera state into the column order
// datalog's body_truth.csv header expects (datalog.bodyTruthHeader),
// shared between the Orchestrator's own periodic logging and
// cmd/ekfcal_sim's final-row dump so the two never drift apart.
func BodyTruthRow(s *state.State) []float64 {
	b := s.Body
	row := []float64{s.CurrentTime}
	row = append(row, b.Pos[:]...)
	row = append(row, b.Vel[:]...)
	row = append(row, b.Acc[:]...)
	row = append(row, b.Quat.W, b.Quat.X, b.Quat.Y, b.Quat.Z)
	row = append(row, b.Omega[:]...)
	row = append(row, b.Alpha[:]...)
	for _, id := range s.ImuOrder {
		imu := s.Imus[id]
		row = append(row, imu.PosOffset[:]...)
		row = append(row, imu.QuatOffset.W, imu.QuatOffset.X, imu.QuatOffset.Y, imu.QuatOffset.Z)
		row = append(row, imu.AccBias[:]...)
		row = append(row, imu.GyroBias[:]...)
	}
	for _, id := range s.CamOrder {
		cam := s.Cams[id]
		row = append(row, cam.PosOffset[:]...)
		row = append(row, cam.QuatOffset.W, cam.QuatOffset.X, cam.QuatOffset.Y, cam.QuatOffset.Z)
	}
	return row
}
