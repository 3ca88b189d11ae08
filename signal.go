package reactor

// Signal delivery routes one reserved token through the same poll object as
// everything else. The receiver is an ordinary readable fd (conventionally
// the read end of a pipe a signal handler writes to); no slot is allocated
// for it.

// ConsumeSignalReady reads and clears the pending-signal flag. Multiple
// signal events between consumptions collapse to one notification. Only the
// goroutine that owns the driver may call this.
func (d *Driver) ConsumeSignalReady() bool {
	ret := d.signalReady
	d.signalReady = false
	return ret
}
