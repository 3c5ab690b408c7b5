package rndc

import "fmt"

// Convenience wrappers over Call for the standard rndc command set
// (SPEC_FULL.md "Supplemented features": BIND's rndc subcommands).
// Each simply formats the command text BIND expects and delegates to
// Call; none of them special-case the response shape beyond what Call
// and Result already provide.

// Status requests the server's status report.
func (s *Session) Status() (Result, error) {
	return s.Call("status")
}

// Reload reloads the configuration file and zones, or a single zone
// when name is non-empty.
func (s *Session) Reload(name string) (Result, error) {
	if name == "" {
		return s.Call("reload")
	}

	return s.Call(fmt.Sprintf("reload %s", name))
}

// Reconfig reloads the configuration file and any new zones, without
// reloading existing zone data.
func (s *Session) Reconfig() (Result, error) {
	return s.Call("reconfig")
}

// Refresh schedules an immediate refresh of the named zone.
func (s *Session) Refresh(zone string) (Result, error) {
	return s.Call(fmt.Sprintf("refresh %s", zone))
}

// Freeze suspends updates to a dynamic zone, or all dynamic zones when
// zone is empty.
func (s *Session) Freeze(zone string) (Result, error) {
	if zone == "" {
		return s.Call("freeze")
	}

	return s.Call(fmt.Sprintf("freeze %s", zone))
}

// Thaw resumes updates suspended by Freeze.
func (s *Session) Thaw(zone string) (Result, error) {
	if zone == "" {
		return s.Call("thaw")
	}

	return s.Call(fmt.Sprintf("thaw %s", zone))
}

// Flush clears the server's cache, or one view's cache when view is
// non-empty.
func (s *Session) Flush(view string) (Result, error) {
	if view == "" {
		return s.Call("flush")
	}

	return s.Call(fmt.Sprintf("flush %s", view))
}

// FlushTree clears the given name and its subdomains from the cache.
func (s *Session) FlushTree(name string) (Result, error) {
	return s.Call(fmt.Sprintf("flushtree %s", name))
}

// QueryLog toggles query logging.
func (s *Session) QueryLog(enable bool) (Result, error) {
	if enable {
		return s.Call("querylog on")
	}

	return s.Call("querylog off")
}

// Notrace disables all debug logging, equivalent to SetTraceLevel(0).
func (s *Session) Notrace() (Result, error) {
	return s.Call("notrace")
}

// SetTraceLevel sets the server's debug logging level.
func (s *Session) SetTraceLevel(level int) (Result, error) {
	return s.Call(fmt.Sprintf("trace %d", level))
}

// Null is a no-op command used to probe connectivity and authentication
// without side effects on the server.
func (s *Session) Null() (Result, error) {
	return s.Call("null")
}
