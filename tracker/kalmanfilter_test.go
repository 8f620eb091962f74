package tracker

import (
	"math"
	"testing"
)

// TestKalmanFilterInitiate checks the initial state has the measured
// position and no velocity
func TestKalmanFilterInitiate(t *testing.T) {
	kf := NewKalmanFilter(4, 1)

	mean, cov := kf.Initiate(100, 200)

	want := StateMean{100, 200, 0, 0}

	for i := range want {
		if mean[i] != want[i] {
			t.Errorf("mean[%d] = %v, want %v", i, mean[i], want[i])
		}
	}

	if cov.At(0, 0) != 64 || cov.At(2, 2) != 100 || cov.At(0, 2) != 0 {
		t.Errorf("unexpected initial covariance %v %v %v", cov.At(0, 0), cov.At(2, 2), cov.At(0, 2))
	}
}

// TestKalmanFilterConvergesOnVelocity feeds a constant velocity motion and
// checks the filter learns the velocity
func TestKalmanFilterConvergesOnVelocity(t *testing.T) {
	kf := NewKalmanFilter(4, 1)

	mean, cov := kf.Initiate(0, 0)

	for i := 1; i <= 50; i++ {
		kf.Predict(mean, &cov)

		if err := kf.Update(mean, &cov, float64(i)*10, float64(i)*-5); err != nil {
			t.Fatalf("update %d failed: %v", i, err)
		}
	}

	kf.Predict(mean, &cov)

	if math.Abs(mean[0]-510) > 1 || math.Abs(mean[1]+255) > 1 {
		t.Errorf("predicted position (%.2f, %.2f), want (510, -255)", mean[0], mean[1])
	}

	if math.Abs(mean[2]-10) > 0.5 || math.Abs(mean[3]+5) > 0.5 {
		t.Errorf("velocity (%.2f, %.2f), want (10, -5)", mean[2], mean[3])
	}
}

// TestKalmanFilterPredictGrowsUncertainty checks prediction without updates
// increases the position variance
func TestKalmanFilterPredictGrowsUncertainty(t *testing.T) {
	kf := NewKalmanFilter(4, 1)

	mean, cov := kf.Initiate(10, 10)
	before := cov.At(0, 0)

	kf.Predict(mean, &cov)
	kf.Predict(mean, &cov)

	if cov.At(0, 0) <= before {
		t.Errorf("variance did not grow: before %v after %v", before, cov.At(0, 0))
	}

	if mean[0] != 10 || mean[1] != 10 {
		t.Errorf("stationary state moved to (%v, %v)", mean[0], mean[1])
	}
}
