package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/kube-dbmigrate/internal/instrumentation"
	"github.com/giantswarm/kube-dbmigrate/internal/integrity"
	"github.com/giantswarm/kube-dbmigrate/internal/k8s"
	"github.com/giantswarm/kube-dbmigrate/internal/logging"
	"github.com/giantswarm/kube-dbmigrate/internal/preflight"
)

// Cluster is the subset of the Kubernetes client a migration needs.
type Cluster interface {
	k8s.PodManager

	// ResolveContext checks that a kube context can be used.
	ResolveContext(ctx context.Context, contextName string) (*k8s.ContextInfo, error)
}

// Migrator runs database migrations between two pods. A Migrator holds no
// per-run state and may be reused for sequential runs.
type Migrator struct {
	cluster  Cluster
	strategy Strategy
	opts     options
}

// Result describes a finished run.
type Result struct {
	RunID    string
	State    State
	Artifact DumpArtifact
	Duration time.Duration
}

// New creates a Migrator for the given vendor strategy.
func New(cluster Cluster, strategy Strategy, opts ...Option) (*Migrator, error) {
	if cluster == nil {
		return nil, ErrMissingCluster
	}
	if strategy == nil {
		return nil, ErrMissingStrategy
	}

	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	if o.newRunID == nil {
		o.newRunID = uuid.NewString
	}

	return &Migrator{cluster: cluster, strategy: strategy, opts: o}, nil
}

// Strategy returns the vendor strategy in use.
func (m *Migrator) Strategy() Strategy {
	return m.strategy
}

// run carries the state of a single Run call.
type run struct {
	m        *Migrator
	id       string
	req      Request
	state    State
	artifact DumpArtifact
	logger   *slog.Logger
}

type step struct {
	to State
	fn func(ctx context.Context) error
}

// Run executes one migration. Every stage must succeed before the next one
// starts; the first failure ends the run with a *StageError.
func (m *Migrator) Run(ctx context.Context, req Request) (*Result, error) {
	start := m.opts.now()
	r := &run{
		m:     m,
		id:    m.opts.newRunID(),
		req:   req,
		state: StateStart,
	}
	r.logger = logging.WithRun(m.opts.logger, r.id, m.strategy.Name())

	ctx, span := instrumentation.StartMigrationSpan(ctx, r.id, m.strategy.Name())
	defer span.End()
	src := req.Source.Target
	span.SetAttributes(instrumentation.PodAttributes(src.Context, src.Namespace, src.Pod)...)

	if err := m.opts.recorder.RunStarted(ctx, RunInfo{
		ID:          r.id,
		Vendor:      m.strategy.Name(),
		Source:      req.Source.Target,
		Destination: req.Destination.Target,
		StartedAt:   start,
	}); err != nil {
		r.logger.Warn("failed to record run start", logging.Err(err))
	}

	r.logger.Info("starting migration", "source", req.Source, "destination", req.Destination)

	err := r.execute(ctx)

	result := &Result{
		RunID:    r.id,
		State:    r.state,
		Artifact: r.artifact,
		Duration: m.opts.now().Sub(start),
	}

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		r.logger.Error("migration failed",
			logging.Stage(string(failedStage(err))),
			logging.Err(err),
			"trace_id", instrumentation.GetTraceID(ctx),
		)
	} else {
		instrumentation.SetSpanSuccess(span)
		r.logger.Info("migration completed",
			logging.Duration(result.Duration),
			logging.Path(r.artifact.LocalPath),
			"size", r.artifact.HumanSize(),
		)
	}
	// The outcome is recorded even when ctx was cancelled mid-run.
	finishCtx := context.WithoutCancel(ctx)
	m.opts.metrics.RecordMigration(finishCtx, m.strategy.Name(), status, result.Duration)

	if recErr := m.opts.recorder.RunFinished(finishCtx, r.id, Outcome{
		State:      r.state,
		FailedAt:   failedStage(err),
		Artifact:   r.artifact,
		Err:        err,
		FinishedAt: m.opts.now(),
	}); recErr != nil {
		r.logger.Warn("failed to record run outcome", logging.Err(recErr))
	}

	return result, err
}

func (r *run) execute(ctx context.Context) error {
	if err := r.req.Validate(); err != nil {
		r.transition(ctx, StateFailed)
		return &StageError{Stage: StateStart, Kind: ErrPrecondition, Err: err}
	}

	steps := []step{
		{StatePodsVerified, r.verifyPods},
		{StateBackedUp, r.backup},
		{StateDownloaded, r.download},
		{StateSpaceChecked, r.checkSpace},
		{StateDestinationReady, r.checkDestination},
		{StateUploaded, r.upload},
		{StateVerified, r.verify},
		{StateRestored, r.restore},
	}

	for _, s := range steps {
		if err := r.runStep(ctx, s); err != nil {
			r.transition(ctx, StateFailed)
			return err
		}
	}

	r.cleanup(ctx)
	r.transition(ctx, StateDone)
	return nil
}

func (r *run) runStep(ctx context.Context, s step) error {
	if !r.state.CanTransition(s.to) {
		return &StageError{Stage: s.to, Kind: ErrPrecondition,
			Err: fmt.Errorf("illegal transition from %s to %s", r.state, s.to)}
	}

	ctx, span := instrumentation.StartStageSpan(ctx, string(s.to))
	defer span.End()

	begin := time.Now()
	r.logger.Debug("entering stage", logging.Stage(string(s.to)))

	err := s.fn(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	r.m.opts.metrics.RecordStage(ctx, string(s.to), status, time.Since(begin))

	if err != nil {
		return err
	}

	r.transition(ctx, s.to)
	return nil
}

func (r *run) transition(ctx context.Context, to State) {
	r.logger.Info("migration state changed", logging.Stage(string(to)), "from", string(r.state))
	r.state = to
	if err := r.m.opts.recorder.StateChanged(context.WithoutCancel(ctx), r.id, to); err != nil {
		r.logger.Warn("failed to record state change", logging.Stage(string(to)), logging.Err(err))
	}
}

// Start -> PodsVerified
func (r *run) verifyPods(ctx context.Context) error {
	// One budget for both pods: the second wait only gets what the first left.
	ctx, cancel := context.WithTimeout(ctx, r.m.opts.podReadyTimeout)
	defer cancel()
	wait := k8s.WaitOptions{PollInterval: r.m.opts.pollInterval, Timeout: r.m.opts.podReadyTimeout}

	for _, target := range []k8s.Target{r.req.Source.Target, r.req.Destination.Target} {
		if err := r.m.cluster.WaitForPodReady(ctx, target, wait); err != nil {
			return &StageError{Stage: StatePodsVerified, Target: target, Kind: classify(err, ErrPrecondition), Err: err}
		}
	}
	return nil
}

// PodsVerified -> BackedUp
func (r *run) backup(ctx context.Context) error {
	src := r.req.Source

	compress, err := preflight.UtilityAvailable(ctx, r.m.cluster, src.Target, compressCommand)
	if err != nil {
		return &StageError{Stage: StateBackedUp, Target: src.Target, Kind: classify(err, ErrPrecondition), Err: err}
	}
	r.logger.Info("compression probe", "utility", compressCommand, "available", compress)

	exists, err := preflight.DirectoryExists(ctx, r.m.cluster, src.Target, src.StagingDir)
	if err != nil {
		return &StageError{Stage: StateBackedUp, Target: src.Target, Path: src.StagingDir, Kind: classify(err, ErrPrecondition), Err: err}
	}
	if !exists {
		return &StageError{Stage: StateBackedUp, Target: src.Target, Path: src.StagingDir, Kind: ErrPrecondition,
			Err: errors.New("source staging directory does not exist")}
	}

	cmd := r.m.strategy.BackupCommand(BackupParams{
		User:       src.User,
		Password:   src.Password,
		Port:       src.Port,
		StagingDir: src.StagingDir,
		Compress:   compress,
	})
	dumpPath := DumpPath(src.StagingDir, compress)

	if err := r.vendorExec(ctx, StateBackedUp, src.Target, dumpPath, cmd); err != nil {
		return err
	}

	r.artifact.RemotePath = dumpPath
	r.artifact.Compressed = compress
	return nil
}

// BackedUp -> Downloaded
func (r *run) download(ctx context.Context) error {
	src := r.req.Source.Target
	remote := r.artifact.RemotePath

	sourceHash, err := integrity.RemoteHash(ctx, r.m.cluster, src, remote)
	if err != nil {
		return &StageError{Stage: StateDownloaded, Target: src, Path: remote, Kind: classify(err, ErrIntegrity), Err: err}
	}
	r.artifact.SourceHash = sourceHash

	local := filepath.Join(r.m.opts.localDir, LocalDumpFileName(src, r.artifact.Compressed, r.m.opts.now()))
	n, err := r.m.cluster.Download(ctx, src, remote, local)
	if err != nil {
		return &StageError{Stage: StateDownloaded, Target: src, Path: remote, Kind: ErrTransport, Err: err}
	}
	r.artifact.LocalPath = local
	r.m.opts.metrics.RecordTransfer(ctx, instrumentation.DirectionDownload, n)

	info, err := os.Stat(local)
	if err != nil {
		return &StageError{Stage: StateDownloaded, Path: local, Kind: ErrTransport, Err: err}
	}
	r.artifact.SizeBytes = info.Size()

	localHash, err := integrity.LocalHash(local)
	if err != nil {
		return &StageError{Stage: StateDownloaded, Path: local, Kind: ErrIntegrity, Err: err}
	}
	r.artifact.LocalHash = localHash

	if !integrity.Match(sourceHash, localHash) {
		return &StageError{Stage: StateDownloaded, Target: src, Path: local, Kind: ErrIntegrity,
			Err: fmt.Errorf("hash mismatch: source %s, local %s", sourceHash, localHash)}
	}

	r.logger.Info("dump downloaded", logging.Path(local), "size", r.artifact.HumanSize(), "sha256", localHash)
	return nil
}

// Downloaded -> SpaceChecked
func (r *run) checkSpace(ctx context.Context) error {
	dst := r.req.Destination.Target

	if _, err := r.m.cluster.ResolveContext(ctx, dst.Context); err != nil {
		return &StageError{Stage: StateSpaceChecked, Target: dst, Kind: classify(err, ErrPrecondition), Err: err}
	}

	required := preflight.RequiredMegabytes(r.artifact.SizeBytes)
	ok, err := preflight.HasEnoughSpace(ctx, r.m.cluster, dst, required)
	if err != nil {
		return &StageError{Stage: StateSpaceChecked, Target: dst, Path: preflight.SpaceMountPoint, Kind: classify(err, ErrPrecondition), Err: err}
	}
	if !ok {
		return &StageError{Stage: StateSpaceChecked, Target: dst, Path: preflight.SpaceMountPoint, Kind: ErrPrecondition,
			Err: fmt.Errorf("not enough free space: need more than %d MB for %s", required, r.artifact.HumanSize())}
	}

	r.logger.Info("enough space on destination", logging.Pod(dst.Pod), "required_mb", required)
	return nil
}

// SpaceChecked -> DestinationReady
func (r *run) checkDestination(ctx context.Context) error {
	dst := r.req.Destination

	exists, err := preflight.DirectoryExists(ctx, r.m.cluster, dst.Target, dst.StagingDir)
	if err != nil {
		return &StageError{Stage: StateDestinationReady, Target: dst.Target, Path: dst.StagingDir, Kind: classify(err, ErrPrecondition), Err: err}
	}
	if !exists {
		return &StageError{Stage: StateDestinationReady, Target: dst.Target, Path: dst.StagingDir, Kind: ErrPrecondition,
			Err: errors.New("destination staging directory does not exist")}
	}
	return nil
}

// DestinationReady -> Uploaded
func (r *run) upload(ctx context.Context) error {
	dst := r.req.Destination
	remote := path.Join(dst.StagingDir, filepath.Base(r.artifact.LocalPath))

	n, err := r.m.cluster.Upload(ctx, dst.Target, r.artifact.LocalPath, remote)
	if err != nil {
		return &StageError{Stage: StateUploaded, Target: dst.Target, Path: remote, Kind: ErrTransport, Err: err}
	}
	r.artifact.DestinationPath = remote
	r.m.opts.metrics.RecordTransfer(ctx, instrumentation.DirectionUpload, n)

	r.logger.Info("dump uploaded", logging.Pod(dst.Target.Pod), logging.Path(remote))
	return nil
}

// Uploaded -> Verified
func (r *run) verify(ctx context.Context) error {
	dst := r.req.Destination.Target
	remote := r.artifact.DestinationPath

	destHash, err := integrity.RemoteHash(ctx, r.m.cluster, dst, remote)
	if err != nil {
		return &StageError{Stage: StateVerified, Target: dst, Path: remote, Kind: classify(err, ErrIntegrity), Err: err}
	}
	r.artifact.DestinationHash = destHash

	if !r.artifact.Verified() {
		return &StageError{Stage: StateVerified, Target: dst, Path: remote, Kind: ErrIntegrity,
			Err: fmt.Errorf("hash mismatch: source %s, local %s, destination %s",
				r.artifact.SourceHash, r.artifact.LocalHash, destHash)}
	}
	return nil
}

// Verified -> Restored
func (r *run) restore(ctx context.Context) error {
	dst := r.req.Destination

	if !r.artifact.Verified() {
		return &StageError{Stage: StateRestored, Target: dst.Target, Path: r.artifact.DestinationPath, Kind: ErrIntegrity,
			Err: errors.New("refusing to restore an unverified dump")}
	}

	cmd := r.m.strategy.RestoreCommand(RestoreParams{
		User:       dst.User,
		Password:   dst.Password,
		Port:       dst.Port,
		DumpPath:   r.artifact.DestinationPath,
		Compressed: r.artifact.Compressed,
	})
	return r.vendorExec(ctx, StateRestored, dst.Target, r.artifact.DestinationPath, cmd)
}

// vendorExec runs a dump or restore command and checks its exit status.
func (r *run) vendorExec(ctx context.Context, stage State, target k8s.Target, filePath string, cmd Command) error {
	r.logger.Info("running vendor command", logging.Stage(string(stage)), logging.Pod(target.Pod),
		logging.Command(cmd.Text, cmd.Secrets...))

	res, err := r.m.cluster.Exec(ctx, target, cmd.Text)
	if err != nil {
		return &StageError{Stage: stage, Target: target, Path: filePath, Kind: ErrTransport,
			Err: errors.New(logging.RedactSecrets(err.Error(), cmd.Secrets...))}
	}
	if !res.Succeeded() {
		stderr := logging.RedactSecrets(strings.TrimSpace(res.Stderr), cmd.Secrets...)
		return &StageError{Stage: stage, Target: target, Path: filePath, Kind: ErrVendorCommand,
			Err: fmt.Errorf("exit code %d: %s", res.ExitCode, stderr)}
	}
	return nil
}

// failedStage returns the stage named by a *StageError, if any.
func failedStage(err error) State {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
