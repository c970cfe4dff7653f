package migration

import (
	"fmt"
	"time"

	"github.com/giantswarm/kube-dbmigrate/internal/k8s"
)

// localTimestampLayout renders as YY-MM-DD-HHMMSS.
const localTimestampLayout = "06-01-02-150405"

// LocalDumpFileName names the local staging copy of a dump taken from source
// at t. Names differ for dumps taken at least one second apart.
func LocalDumpFileName(source k8s.Target, compressed bool, t time.Time) string {
	name := fmt.Sprintf("dump-%s-%s-%s-%s.sql", source.Context, source.Namespace, source.Pod, t.Format(localTimestampLayout))
	if compressed {
		name += compressedSuffix
	}
	return name
}
