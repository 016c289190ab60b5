package state

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestStateSizeIsBodyOnlyInitially(t *testing.T) {
	s := New()
	if s.StateSize() != BodyStateSize {
		t.Fatalf("expected %d, got %d", BodyStateSize, s.StateSize())
	}
}

func TestStateSizeAccountsForImuAndCamera(t *testing.T) {
	s := New()
	s.ImuOrder = append(s.ImuOrder, "imu0")
	s.Imus["imu0"] = &ImuState{IsExtrinsic: true, IsIntrinsic: true}
	s.CamOrder = append(s.CamOrder, "cam0")
	s.Cams["cam0"] = &CamState{MaxClones: 4}

	want := BodyStateSize + 12 + 6
	if s.StateSize() != want {
		t.Fatalf("expected %d, got %d", want, s.StateSize())
	}
}

func TestCamSliceShiftsAfterClonesAdded(t *testing.T) {
	s := New()
	s.CamOrder = append(s.CamOrder, "cam0", "cam1")
	s.Cams["cam0"] = &CamState{MaxClones: 4}
	s.Cams["cam1"] = &CamState{MaxClones: 4}
	s.Cov = zeroCov(s.StateSize())

	before, _ := s.CamSlice("cam1")
	s.AppendClone("cam0", 1)
	after, _ := s.CamSlice("cam1")

	if after.Start != before.Start+AugmentedStateSize {
		t.Fatalf("expected cam1 offset to shift by %d, before=%d after=%d", AugmentedStateSize, before.Start, after.Start)
	}
}

func TestCloneEvictionDropsOldestAndShrinksState(t *testing.T) {
	s := New()
	s.CamOrder = append(s.CamOrder, "cam0")
	s.Cams["cam0"] = &CamState{MaxClones: 4}
	s.Cov = zeroCov(s.StateSize())

	for i := uint64(1); i <= 6; i++ {
		s.AppendClone("cam0", i)
	}
	cam := s.Cams["cam0"]
	if len(cam.Clones) != 4 {
		t.Fatalf("expected window of 4 clones, got %d", len(cam.Clones))
	}
	if cam.Clones[0].FrameID != 3 {
		t.Fatalf("expected earliest surviving frame id 3, got %d", cam.Clones[0].FrameID)
	}
	wantSize := BodyStateSize + 6 + AugmentedStateSize*4
	if s.StateSize() != wantSize {
		t.Fatalf("expected state size %d, got %d", wantSize, s.StateSize())
	}
}

func TestApplyDeltaPreservesQuaternionNorm(t *testing.T) {
	s := New()
	delta := make([]float64, s.StateSize())
	delta[9] = 1e-4
	delta[10] = -2e-4
	delta[11] = 3e-4
	s.ApplyDelta(delta)
	if n := s.Body.Quat.Norm(); n < 1-1e-10 || n > 1+1e-10 {
		t.Fatalf("expected unit norm, got %v", n)
	}
}

func zeroCov(n int) *mat.Dense {
	return mat.NewDense(n, n, nil)
}
