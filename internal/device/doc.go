// Package device opens the modem's diagnostic channel and serializes access
// to it.
//
// Only one capture session may read the channel at a time. Sessions take
// the process-wide Lock before opening the device and release it after the
// capture file is finalized:
//
//	release, err := device.Global().Acquire(ctx, sessionID)
//	if err != nil {
//	    return err
//	}
//	conn, err := device.Open(ctx, "/dev/diag", device.OpenOptions{})
//
// Open retries with exponential backoff while the device node does not yet
// exist, which is common right after the modem resets.
package device
