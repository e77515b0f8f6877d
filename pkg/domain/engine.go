package domain

import "fmt"

// EngineKind is the closed set of supported workflow specification engines.
//
// The engine is launched as an opaque container; the controller never
// interprets workflow semantics. Adding an engine kind means adding a
// variant here and a descriptor-construction entry in the template builder.
type EngineKind string

const (
	EngineCWL       EngineKind = "cwl"
	EngineYadage    EngineKind = "yadage"
	EngineSerial    EngineKind = "serial"
	EngineSnakemake EngineKind = "snakemake"
)

func (e EngineKind) String() string {
	return string(e)
}

func AsEngineKind(s string) (EngineKind, error) {
	switch s {
	case string(EngineCWL):
		return EngineCWL, nil
	case string(EngineYadage):
		return EngineYadage, nil
	case string(EngineSerial):
		return EngineSerial, nil
	case string(EngineSnakemake):
		return EngineSnakemake, nil
	default:
		return "", fmt.Errorf("'%s' is not a workflow engine kind", s)
	}
}

// ComputeBackend is an optional on-demand distributed-compute flavor
// attached to a run, independent of the engine kind.
type ComputeBackend string

const (
	// No distributed-compute cluster is provisioned.
	ComputeNone ComputeBackend = ""

	// An on-demand Dask cluster (scheduler + autoscaled workers).
	ComputeDask ComputeBackend = "dask"
)

func AsComputeBackend(s string) (ComputeBackend, error) {
	switch s {
	case string(ComputeNone):
		return ComputeNone, nil
	case string(ComputeDask):
		return ComputeDask, nil
	default:
		return "", fmt.Errorf("'%s' is not a compute backend", s)
	}
}
