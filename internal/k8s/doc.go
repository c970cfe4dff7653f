// Package k8s provides the cluster primitives used by the migration pipeline.
//
// The Client interface is split into two concerns:
//
//   - ContextManager: kubeconfig context listing and resolution
//   - PodManager: command execution, file transfer and readiness checks
//
// Every remote operation takes an explicit Target naming the kube context,
// namespace and pod. There is no process-wide "active context": the client
// resolves and caches one clientset per context, so interleaving calls to a
// source and a destination cluster cannot target the wrong one.
//
// Example usage:
//
//	src := k8s.Target{Context: "prod", Namespace: "db", Pod: "mariadb-0"}
//	res, err := client.Exec(ctx, src, "df -Pk /tmp")
//	if err != nil {
//		return err // transport failure
//	}
//	if !res.Succeeded() {
//		return fmt.Errorf("df exited with %d: %s", res.ExitCode, res.Stderr)
//	}
//
// Exec distinguishes a transport failure (returned error) from a command
// that ran and failed (ExecResult.ExitCode != 0).
package k8s
