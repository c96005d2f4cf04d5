package runtime

import (
	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/storage"
)

// StorageEnv is the slice of the reservation layer the engines touch.
// *storage.Store satisfies it directly; tests substitute stubs.
type StorageEnv interface {
	FindAndReserve(jobID string, rq storage.Request, hint jobs.Vec3i) ([]*storage.Reservation, error)
	ReservationsForJob(jobID string) []*storage.Reservation
	CancelForJob(jobID string) int
	Commit(reservationID string) error
	FindStorageFor(resource string, amount int, hint jobs.Vec3i) (jobs.Vec3i, bool)
	Put(p jobs.Vec3i, resource string, amount int) error
	PutItem(p jobs.Vec3i, resource string) (string, error)
	PlaceItemInstance(p jobs.Vec3i, instanceID, resource string) error
	ReserveItemInstance(jobID, instanceID string) (*storage.Reservation, error)
}

// reserveAll places holds for every requirement or none: a failure part-way
// cancels the holds already created for this job.
func reserveAll(env StorageEnv, jobID string, reqs []storage.Request, hint jobs.Vec3i) bool {
	for _, rq := range reqs {
		if _, err := env.FindAndReserve(jobID, rq, hint); err != nil {
			env.CancelForJob(jobID)
			return false
		}
	}
	return true
}

// commitAll consumes every hold belonging to the job.
func commitAll(env StorageEnv, jobID string) {
	for _, r := range env.ReservationsForJob(jobID) {
		_ = env.Commit(r.ID)
	}
}
