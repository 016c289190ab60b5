package state

import "ekfcal-go/mathkit"

// ApplyDelta applies a correction vector δx of length StateSize() onto the
// state: quaternion portions compose via rotation-vector error (then reset
// to zero at the nominal), everything else is additive (spec.md §4.4,
// design note "quaternion error state").
func (s *State) ApplyDelta(delta []float64) {
	// Body block: p(0:3) v(3:6) a(6:9) theta(9:12) omega(12:15) alpha(15:18)
	for i := 0; i < 3; i++ {
		s.Body.Pos[i] += delta[i]
		s.Body.Vel[i] += delta[3+i]
		s.Body.Acc[i] += delta[6+i]
	}
	s.Body.Quat = mathkit.ComposeError(s.Body.Quat, delta[9:12])
	for i := 0; i < 3; i++ {
		s.Body.Omega[i] += delta[12+i]
		s.Body.Alpha[i] += delta[15+i]
	}

	for _, id := range s.ImuOrder {
		sl, _ := s.ImuSlice(id)
		imu := s.Imus[id]
		off := sl.Start
		if imu.IsExtrinsic {
			for i := 0; i < 3; i++ {
				imu.PosOffset[i] += delta[off+i]
			}
			imu.QuatOffset = mathkit.ComposeError(imu.QuatOffset, delta[off+3:off+6])
			off += 6
		}
		if imu.IsIntrinsic {
			for i := 0; i < 3; i++ {
				imu.AccBias[i] += delta[off+i]
				imu.GyroBias[i] += delta[off+3+i]
			}
		}
	}

	for _, id := range s.CamOrder {
		sl, _ := s.CamSlice(id)
		cam := s.Cams[id]
		off := sl.Start
		for i := 0; i < 3; i++ {
			cam.PosOffset[i] += delta[off+i]
		}
		cam.QuatOffset = mathkit.ComposeError(cam.QuatOffset, delta[off+3:off+6])
		off += 6
		for ci := range cam.Clones {
			c := &cam.Clones[ci]
			for i := 0; i < 3; i++ {
				c.CamPos[i] += delta[off+i]
			}
			c.CamQuat = mathkit.ComposeError(c.CamQuat, delta[off+3:off+6])
			for i := 0; i < 3; i++ {
				c.BodyPos[i] += delta[off+6+i]
			}
			c.BodyQuat = mathkit.ComposeError(c.BodyQuat, delta[off+9:off+12])
			off += AugmentedStateSize
		}
	}
}

// ToVector flattens the current nominal state (not the error state) into a
// slice matching StateSize()'s layout, for diagnostics/logging.
func (s *State) ToVector() []float64 {
	out := make([]float64, 0, s.StateSize())
	out = append(out, s.Body.Pos[:]...)
	out = append(out, s.Body.Vel[:]...)
	out = append(out, s.Body.Acc[:]...)
	out = append(out, 0, 0, 0) // orientation error is zero at linearization
	out = append(out, s.Body.Omega[:]...)
	out = append(out, s.Body.Alpha[:]...)

	for _, id := range s.ImuOrder {
		imu := s.Imus[id]
		if imu.IsExtrinsic {
			out = append(out, imu.PosOffset[:]...)
			out = append(out, 0, 0, 0)
		}
		if imu.IsIntrinsic {
			out = append(out, imu.AccBias[:]...)
			out = append(out, imu.GyroBias[:]...)
		}
	}
	for _, id := range s.CamOrder {
		cam := s.Cams[id]
		out = append(out, cam.PosOffset[:]...)
		out = append(out, 0, 0, 0)
		for range cam.Clones {
			out = append(out, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
		}
	}
	return out
}
