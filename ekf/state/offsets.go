package state

// Slice is a (start, length) pair into the flat state vector / covariance.
type Slice struct {
	Start, Len int
}

// BodySlice returns the body block's offset: always (0, 18).
func (s *State) BodySlice() Slice {
	return Slice{Start: 0, Len: BodyStateSize}
}

// ImuSlice returns the offset of imu id's contiguous block (extrinsic then
// intrinsic sub-fields, if present). Recomputed on every call per spec.md
// §4.1's liveness invariant — never cache across a mutation.
func (s *State) ImuSlice(id string) (Slice, bool) {
	start := BodyStateSize
	for _, oid := range s.ImuOrder {
		imu := s.Imus[oid]
		n := imu.contribSize()
		if oid == id {
			return Slice{Start: start, Len: n}, true
		}
		start += n
	}
	return Slice{}, false
}

// ImuExtrinsicSlice returns the 6-scalar extrinsic sub-slice within imu
// id's block, if it has one.
func (s *State) ImuExtrinsicSlice(id string) (Slice, bool) {
	base, ok := s.ImuSlice(id)
	if !ok {
		return Slice{}, false
	}
	imu := s.Imus[id]
	if !imu.IsExtrinsic {
		return Slice{}, false
	}
	return Slice{Start: base.Start, Len: 6}, true
}

// ImuIntrinsicSlice returns the 6-scalar intrinsic (bias) sub-slice within
// imu id's block, if it has one.
func (s *State) ImuIntrinsicSlice(id string) (Slice, bool) {
	base, ok := s.ImuSlice(id)
	if !ok {
		return Slice{}, false
	}
	imu := s.Imus[id]
	if !imu.IsIntrinsic {
		return Slice{}, false
	}
	off := 0
	if imu.IsExtrinsic {
		off = 6
	}
	return Slice{Start: base.Start + off, Len: 6}, true
}

func (s *State) imuBlockStart() int {
	n := BodyStateSize
	for _, id := range s.ImuOrder {
		n += s.Imus[id].contribSize()
	}
	return n
}

// CamSlice returns the offset of camera id's full block (extrinsics plus
// its current clone window).
func (s *State) CamSlice(id string) (Slice, bool) {
	start := s.imuBlockStart()
	for _, oid := range s.CamOrder {
		cam := s.Cams[oid]
		n := cam.contribSize()
		if oid == id {
			return Slice{Start: start, Len: n}, true
		}
		start += n
	}
	return Slice{}, false
}

// CamExtrinsicSlice returns the 6-scalar extrinsic sub-slice of camera id.
func (s *State) CamExtrinsicSlice(id string) (Slice, bool) {
	base, ok := s.CamSlice(id)
	if !ok {
		return Slice{}, false
	}
	return Slice{Start: base.Start, Len: 6}, true
}

// AugSlice returns the 12-scalar offset of the clone with the given
// frame id within camera camID's block, if present.
func (s *State) AugSlice(camID string, frameID uint64) (Slice, bool) {
	base, ok := s.CamSlice(camID)
	if !ok {
		return Slice{}, false
	}
	cam := s.Cams[camID]
	start := base.Start + 6
	for _, aug := range cam.Clones {
		if aug.FrameID == frameID {
			return Slice{Start: start, Len: AugmentedStateSize}, true
		}
		start += AugmentedStateSize
	}
	return Slice{}, false
}
