package metasource

import (
	"fmt"

	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type SpecBuilder[C any, D any] interface {
	// Build k8s resource descriptor(s)
	Build(conf C) D
}

// metadata of a component placed in the k8s cluster.
//
// ToLabels converts a MetaSource to k8s labels.
type MetaSource interface {
	// The name of application/resource.
	//
	// If there are many resources running a same app, they may have same `Name()`.
	//
	// For `ObjectMeta.Name`, USE `Instance()`, NOT THIS.
	//
	// This is set as a value of k8s label "app.kubernetes.io/name".
	Name() string

	// This is set as a value of k8s label "app.kubernetes.io/instance"
	// AND ALSO `ObjectMeta.Name` .
	//
	// This will identify an instance from others sharing Name() and Component().
	Instance() string

	// Where is this positioned in system architecture.
	//
	// example: driver, scheduler, session, ...
	//
	// This is set as a value of k8s label "app.kubernetes.io/component".
	Component() string

	// Identifier of the entity in the workflow object model.
	Id() string

	// type of "Id()"
	//
	// example: run_id, ...
	IdType() string

	// convert to ObjectMeta
	ObjectMeta(namespace string) kubeapimeta.ObjectMeta
}

type Extraer interface {
	// Extra labels.
	//
	// See document of `ToLabels` for more details.
	Extras() map[string]string
}

type ResourceBuilder[C any, D any] interface {
	MetaSource
	SpecBuilder[C, D]
}

// convert a MetaSource to k8s labels, including "recommended labels".
//
// https://kubernetes.io/docs/concepts/overview/working-with-objects/common-labels/
//
// Recommended labels are generated like below.
//
// - "app.kubernetes.io/part-of"    : "reana"
//
// - "app.kubernetes.io/managed-by" : "reana"
//
// - "app.kubernetes.io/component"  : s.Component()
//
// - "app.kubernetes.io/name"       : s.Name()
//
// - "app.kubernetes.io/instance"   : s.Instance()
//
// Workflow-specific labels are prefixed with "reana/":
//
// - "reana/${s.Name()}.${s.IdType()}" : s.Id()
//
// - "reana/${s.Name()}.KEY"           : s.Extras()[KEY] (if any)
func ToLabels(s MetaSource) map[string]string {
	labelPrefix := fmt.Sprintf("reana/%s.", s.Name())

	l := map[string]string{
		"app.kubernetes.io/name":       s.Name(),
		"app.kubernetes.io/instance":   s.Instance(),
		"app.kubernetes.io/component":  s.Component(),
		"app.kubernetes.io/part-of":    "reana",
		"app.kubernetes.io/managed-by": "reana",

		labelPrefix + s.IdType(): s.Id(),
	}

	if withEx, ok := s.(Extraer); ok {
		for k, v := range withEx.Extras() {
			l[labelPrefix+k] = v
		}
	}

	return l
}

// default (and reference) implementation of MetaSource.ObjectMeta.
func ToObjectMeta(m MetaSource, namespace string) kubeapimeta.ObjectMeta {
	return kubeapimeta.ObjectMeta{
		Name:      m.Instance(),
		Namespace: namespace,
		Labels:    ToLabels(m),
	}
}
