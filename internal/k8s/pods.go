package k8s

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"
	utilexec "k8s.io/client-go/util/exec"

	"github.com/giantswarm/kube-dbmigrate/internal/logging"
)

// PodManager implementation

// Exec executes a shell command inside a pod container.
func (c *kubernetesClient) Exec(ctx context.Context, target Target, command string) (*ExecResult, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	c.logOperation("exec", target)

	var stdout, stderr bytes.Buffer
	err := c.stream(ctx, target, []string{DefaultShell, "-c", command}, nil, &stdout, &stderr)

	code, err := exitCode(err)
	if err != nil {
		return nil, fmt.Errorf("failed to execute command in pod %s/%s: %w: %w", target.Namespace, target.Pod, ErrStreamFailed, err)
	}

	return &ExecResult{
		ExitCode: code,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// WaitForPodReady polls the pod until it is running with a Ready condition.
func (c *kubernetesClient) WaitForPodReady(ctx context.Context, target Target, opts WaitOptions) error {
	if err := target.Validate(); err != nil {
		return err
	}
	opts = opts.withDefaults()

	c.logOperation("wait-ready", target, "timeout", opts.Timeout)

	cl, err := c.clusterFor(target.Context)
	if err != nil {
		return err
	}

	var lastPhase string
	err = wait.PollUntilContextTimeout(ctx, opts.PollInterval, opts.Timeout, true, func(ctx context.Context) (bool, error) {
		pod, err := cl.clientset.CoreV1().Pods(target.Namespace).Get(ctx, target.Pod, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			lastPhase = "NotFound"
			return false, nil
		}
		if err != nil {
			// Keep polling through transient API errors until the timeout.
			c.config.Logger.Debug("pod readiness check failed", logging.Pod(target.Pod), logging.SanitizedErr(err))
			return false, nil
		}

		lastPhase = string(pod.Status.Phase)
		return isPodReady(pod), nil
	})
	if err != nil {
		return &PodNotReadyError{
			Target:    target,
			Timeout:   opts.Timeout,
			LastPhase: lastPhase,
			Err:       err,
		}
	}

	c.config.Logger.Info("pod is ready", logging.Context(target.Context), logging.Namespace(target.Namespace), logging.Pod(target.Pod))
	return nil
}

// stream runs command in the target pod and wires the given streams.
// A nil stream is not requested from the API server.
func (c *kubernetesClient) stream(ctx context.Context, target Target, command []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cl, err := c.clusterFor(target.Context)
	if err != nil {
		return err
	}

	execReq := cl.clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(target.Pod).
		Namespace(target.Namespace).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: target.Container,
			Command:   command,
			Stdin:     stdin != nil,
			Stdout:    stdout != nil,
			Stderr:    stderr != nil,
			TTY:       false,
		}, scheme.ParameterCodec)

	if c.config.DebugMode {
		c.config.Logger.Debug("exec URL", "url", logging.SanitizeHost(execReq.URL().String()))
	}

	exec, err := c.newExecutor(cl.streamConfig, http.MethodPost, execReq.URL())
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}

	return exec.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	})
}

// exitCode separates a remote non-zero exit from a transport error.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr utilexec.ExitError
	if errors.As(err, &exitErr) && exitErr.Exited() {
		return exitErr.ExitStatus(), nil
	}

	return 0, err
}

// isPodReady reports whether the pod is running and its Ready condition is true.
func isPodReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}
