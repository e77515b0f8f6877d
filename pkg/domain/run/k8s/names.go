package k8s

// NamingConvention derives cluster resource names from a run id.
//
// Names are deterministic: the full resource set of a run can be
// reconstructed from its id alone, which is what makes duplicate-start
// detection and teardown after a crash possible.
type NamingConvention interface {
	Driver(runId string) string
	DaskScheduler(runId string) string
	DaskWorker(runId string) string
}

type PrefixNamingConvention struct {
	PrefixDriver        string
	PrefixDaskScheduler string
	PrefixDaskWorker    string
}

func (p PrefixNamingConvention) Driver(runId string) string {
	return p.PrefixDriver + runId
}

func (p PrefixNamingConvention) DaskScheduler(runId string) string {
	return p.PrefixDaskScheduler + runId
}

func (p PrefixNamingConvention) DaskWorker(runId string) string {
	return p.PrefixDaskWorker + runId
}

var defaultNamingConvention = PrefixNamingConvention{
	PrefixDriver:        "batch-run-",
	PrefixDaskScheduler: "dask-scheduler-",
	PrefixDaskWorker:    "dask-worker-",
}

func DefaultNamingConvention() NamingConvention {
	return defaultNamingConvention
}
