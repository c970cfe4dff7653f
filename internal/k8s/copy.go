package k8s

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alessio/shellescape"

	"github.com/giantswarm/kube-dbmigrate/internal/logging"
)

// Download streams remotePath out of the pod with cat and writes it to localPath.
func (c *kubernetesClient) Download(ctx context.Context, target Target, remotePath, localPath string) (int64, error) {
	if err := target.Validate(); err != nil {
		return 0, err
	}

	c.logOperation("download", target, logging.Path(remotePath), "local_path", localPath)

	f, err := os.Create(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}

	w := &countingWriter{w: f}
	var stderr bytes.Buffer
	code, err := exitCode(c.stream(ctx, target, []string{"cat", remotePath}, nil, w, &stderr))
	closeErr := f.Close()
	if err != nil {
		return w.n, fmt.Errorf("failed to download %s from pod %s/%s: %w: %w", remotePath, target.Namespace, target.Pod, ErrStreamFailed, err)
	}
	if closeErr != nil {
		return w.n, fmt.Errorf("failed to close local file %s: %w", localPath, closeErr)
	}
	if code != 0 {
		return w.n, fmt.Errorf("failed to download %s from pod %s/%s: cat exited with code %d: %s",
			remotePath, target.Namespace, target.Pod, code, strings.TrimSpace(stderr.String()))
	}

	return w.n, nil
}

// Upload streams localPath into the pod, writing it to remotePath.
func (c *kubernetesClient) Upload(ctx context.Context, target Target, localPath, remotePath string) (int64, error) {
	if err := target.Validate(); err != nil {
		return 0, err
	}

	c.logOperation("upload", target, logging.Path(remotePath), "local_path", localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open local file %s: %w", localPath, err)
	}
	defer f.Close()

	r := &countingReader{r: f}
	var stderr bytes.Buffer
	command := []string{DefaultShell, "-c", "cat > " + shellescape.Quote(remotePath)}
	code, err := exitCode(c.stream(ctx, target, command, r, nil, &stderr))
	if err != nil {
		return r.n, fmt.Errorf("failed to upload %s to pod %s/%s: %w: %w", localPath, target.Namespace, target.Pod, ErrStreamFailed, err)
	}
	if code != 0 {
		return r.n, fmt.Errorf("failed to upload %s to pod %s/%s: remote write exited with code %d: %s",
			localPath, target.Namespace, target.Pod, code, strings.TrimSpace(stderr.String()))
	}

	return r.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}
