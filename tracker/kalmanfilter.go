package tracker

import (
	"errors"
	"fmt"
	"gonum.org/v1/gonum/mat"
)

// StateMean is the 1x4 state vector of centroid x, y and velocity vx, vy
type StateMean []float64

// StateCov represents a 4x4 state covariance matrix
type StateCov struct {
	*mat.Dense
}

// KalmanFilter is a constant velocity Kalman filter over a track centroid.
// Time is measured in frames
type KalmanFilter struct {
	stdPosition float64
	stdVelocity float64
	motionMat   *mat.Dense
	updateMat   *mat.Dense
}

// NewKalmanFilter initializes and returns a new KalmanFilter using the
// position and velocity noise standard deviations in pixels
func NewKalmanFilter(stdPosition, stdVelocity float64) *KalmanFilter {

	// identity with the velocity applied to position for one frame step
	motionMat := mat.NewDense(4, 4, nil)

	for i := 0; i < 4; i++ {
		motionMat.Set(i, i, 1.0)
	}

	motionMat.Set(0, 2, 1.0)
	motionMat.Set(1, 3, 1.0)

	// measurement is the position only
	updateMat := mat.NewDense(2, 4, nil)
	updateMat.Set(0, 0, 1.0)
	updateMat.Set(1, 1, 1.0)

	return &KalmanFilter{
		stdPosition: stdPosition,
		stdVelocity: stdVelocity,
		motionMat:   motionMat,
		updateMat:   updateMat,
	}
}

// Initiate returns the state mean and covariance for a first measurement
func (kf *KalmanFilter) Initiate(x, y float64) (StateMean, StateCov) {

	mean := StateMean{x, y, 0, 0}

	cov := mat.NewDense(4, 4, nil)
	cov.Set(0, 0, 4*kf.stdPosition*kf.stdPosition)
	cov.Set(1, 1, 4*kf.stdPosition*kf.stdPosition)
	cov.Set(2, 2, 100*kf.stdVelocity*kf.stdVelocity)
	cov.Set(3, 3, 100*kf.stdVelocity*kf.stdVelocity)

	return mean, StateCov{cov}
}

// Predict advances the state mean and covariance by one frame
func (kf *KalmanFilter) Predict(mean StateMean, covariance *StateCov) {

	motionCov := mat.NewDiagDense(4, []float64{
		kf.stdPosition * kf.stdPosition,
		kf.stdPosition * kf.stdPosition,
		kf.stdVelocity * kf.stdVelocity,
		kf.stdVelocity * kf.stdVelocity,
	})

	meanVec := mat.NewVecDense(4, []float64{mean[0], mean[1], mean[2], mean[3]})

	var next mat.VecDense
	next.MulVec(kf.motionMat, meanVec)

	for i := 0; i < 4; i++ {
		mean[i] = next.AtVec(i)
	}

	// F * P * F^T + Q
	var fp, cov mat.Dense
	fp.Mul(kf.motionMat, covariance.Dense)
	cov.Mul(&fp, kf.motionMat.T())
	cov.Add(&cov, motionCov)

	covariance.Dense = &cov
}

// Update corrects the state with a measured centroid
func (kf *KalmanFilter) Update(mean StateMean, covariance *StateCov, x, y float64) error {

	projectedMean, projectedCov := kf.project(mean, covariance)

	chol := mat.Cholesky{}

	if ok := chol.Factorize(projectedCov); !ok {
		return errors.New("failed to factorize projected covariance")
	}

	// B = P * H^T
	B := mat.NewDense(4, 2, nil)
	B.Mul(covariance.Dense, kf.updateMat.T())

	// gain is solved transposed, K^T = S^-1 * B^T
	var kalmanGain mat.Dense
	err := chol.SolveTo(&kalmanGain, B.T())

	if err != nil {
		return fmt.Errorf("failed to compute kalman gain: %w", err)
	}

	innovation := mat.NewVecDense(2, []float64{
		x - projectedMean[0],
		y - projectedMean[1],
	})

	var correction mat.VecDense
	correction.MulVec(kalmanGain.T(), innovation)

	for i := 0; i < 4; i++ {
		mean[i] += correction.AtVec(i)
	}

	// P - K * S * K^T
	var ks, kskt, cov mat.Dense
	ks.Mul(kalmanGain.T(), projectedCov)
	kskt.Mul(&ks, &kalmanGain)
	cov.Sub(covariance.Dense, &kskt)

	covariance.Dense = &cov

	return nil
}

// project maps the state into measurement space
func (kf *KalmanFilter) project(mean StateMean, covariance *StateCov) ([]float64, *mat.SymDense) {

	projectedMean := []float64{mean[0], mean[1]}

	var hp, hpht mat.Dense
	hp.Mul(kf.updateMat, covariance.Dense)
	hpht.Mul(&hp, kf.updateMat.T())

	noise := kf.stdPosition * kf.stdPosition

	projectedCov := mat.NewSymDense(2, nil)

	for i := 0; i < 2; i++ {
		for j := i; j < 2; j++ {
			v := (hpht.At(i, j) + hpht.At(j, i)) / 2
			if i == j {
				v += noise
			}
			projectedCov.SetSym(i, j, v)
		}
	}

	return projectedMean, projectedCov
}
