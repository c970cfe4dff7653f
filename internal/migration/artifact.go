package migration

import (
	"github.com/dustin/go-humanize"

	"github.com/giantswarm/kube-dbmigrate/internal/integrity"
)

// DumpArtifact tracks the single dump produced by a run as it moves from the
// source pod to the local staging directory and on to the destination pod.
// RemotePath and Compressed are fixed once the backup has run.
type DumpArtifact struct {
	RemotePath      string `json:"remotePath"`
	Compressed      bool   `json:"compressed"`
	LocalPath       string `json:"localPath,omitempty"`
	DestinationPath string `json:"destinationPath,omitempty"`
	SizeBytes       int64  `json:"sizeBytes"`

	SourceHash      string `json:"sourceHash,omitempty"`
	LocalHash       string `json:"localHash,omitempty"`
	DestinationHash string `json:"destinationHash,omitempty"`
}

// Verified reports whether all three digests are present and identical.
func (a *DumpArtifact) Verified() bool {
	if a == nil {
		return false
	}
	return integrity.Match(a.SourceHash, a.LocalHash, a.DestinationHash)
}

// HumanSize renders SizeBytes for operators. Sizes below 10000 KB are shown
// in KB, larger ones in MB.
func (a *DumpArtifact) HumanSize() string {
	if a == nil {
		return "0 B"
	}
	if a.SizeBytes < 10000*1024 {
		return humanize.CommafWithDigits(float64(a.SizeBytes)/1024, 1) + " KB"
	}
	return humanize.CommafWithDigits(float64(a.SizeBytes)/(1024*1024), 1) + " MB"
}
