package checkpoint

import (
	"fmt"
	"strconv"
	"strings"
)

// Artifact identifies the kind of persisted intermediate result
type Artifact int

const (
	TrainIn Artifact = iota
	TrainOut
	TestIn
	TestOut
	Cohort
	Background
)

var artifactNames = [...]string{
	TrainIn:    "train_in",
	TrainOut:   "train_out",
	TestIn:     "test_in",
	TestOut:    "test_out",
	Cohort:     "cohort",
	Background: "background",
}

func (a Artifact) String() string {
	if a < 0 || int(a) >= len(artifactNames) {
		return "artifact(" + strconv.Itoa(int(a)) + ")"
	}
	return artifactNames[a]
}

// PerRun reports whether the artifact is an id list stored once per run
func (a Artifact) PerRun() bool {
	return a == Cohort || a == Background
}

// HasStatistics reports whether the artifact is persisted with a quality statistics snapshot
func (a Artifact) HasStatistics() bool {
	return a == TestIn || a == TestOut
}

func parseArtifact(name string) (Artifact, bool) {
	for i, n := range artifactNames {
		if n == name {
			return Artifact(i), true
		}
	}
	return 0, false
}

// FileKind selects which file of an artifact is addressed
type FileKind int

const (
	KindData FileKind = iota
	KindStatistics
	KindIDs
)

var kindExtensions = [...]string{
	KindData:       ".data",
	KindStatistics: ".statistics",
	KindIDs:        ".txt",
}

// Key addresses one checkpoint artifact. Target and Iteration are ignored for per-run artifacts.
type Key struct {
	Artifact  Artifact
	Target    int
	Run       int
	Iteration int
}

// RunKey addresses a per-run id list
func RunKey(a Artifact, run int) Key {
	return Key{Artifact: a, Run: run}
}

// IterationKey addresses a training or test dataset
func IterationKey(a Artifact, target, run, iteration int) Key {
	return Key{Artifact: a, Target: target, Run: run, Iteration: iteration}
}

func (k Key) String() string {
	if k.Artifact.PerRun() {
		return fmt.Sprintf("%s run=%d", k.Artifact, k.Run)
	}
	return fmt.Sprintf("%s target=%d run=%d iteration=%d", k.Artifact, k.Target, k.Run, k.Iteration)
}

// FileName maps a key to its canonical file name. Per-run artifacts always
// use the id list file; kind selects data or statistics for the others.
func FileName(k Key, kind FileKind) string {
	if k.Artifact.PerRun() {
		return k.Artifact.String() + "_" + strconv.Itoa(k.Run) + kindExtensions[KindIDs]
	}
	if kind == KindIDs {
		kind = KindData
	}
	return strconv.Itoa(k.Target) + "_" + strconv.Itoa(k.Run) + "_" + strconv.Itoa(k.Iteration) + "_" +
		k.Artifact.String() + kindExtensions[kind]
}

// ParseFileName is the inverse of FileName. Names that FileName would not produce are rejected.
func ParseFileName(name string) (Key, FileKind, bool) {
	kind := FileKind(-1)
	base := name
	for k, ext := range kindExtensions {
		if strings.HasSuffix(name, ext) {
			kind = FileKind(k)
			base = strings.TrimSuffix(name, ext)
			break
		}
	}
	if kind < 0 {
		return Key{}, 0, false
	}

	var key Key
	if kind == KindIDs {
		i := strings.LastIndex(base, "_")
		if i < 0 {
			return Key{}, 0, false
		}
		a, ok := parseArtifact(base[:i])
		run, err := strconv.Atoi(base[i+1:])
		if !ok || err != nil || !a.PerRun() {
			return Key{}, 0, false
		}
		key = RunKey(a, run)
	} else {
		parts := strings.SplitN(base, "_", 4)
		if len(parts) != 4 {
			return Key{}, 0, false
		}
		var nums [3]int
		for i := range nums {
			n, err := strconv.Atoi(parts[i])
			if err != nil {
				return Key{}, 0, false
			}
			nums[i] = n
		}
		a, ok := parseArtifact(parts[3])
		if !ok || a.PerRun() {
			return Key{}, 0, false
		}
		key = IterationKey(a, nums[0], nums[1], nums[2])
	}

	// rejects non-canonical spellings such as leading zeros or a plus sign
	if FileName(key, kind) != name {
		return Key{}, 0, false
	}
	return key, kind, true
}
