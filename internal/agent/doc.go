// Package agent ties a protocol driver to the configuration authority.
//
// Lifecycle:
//
//	a := agent.New(agent.Options{...})
//	if err := a.Initial(ctx); err != nil {
//	    return err // the agent has already shut itself down
//	}
//	return a.Run(ctx)
//
// Initial registers the driver (retrying transient failures), subscribes to
// the driver's change-event topic, bulk-loads the configuration cache and
// initialises the driver. Events that arrive during the load are buffered
// and applied once it completes. Run polls every readable point on
// schedule.read_interval, publishing each value to the bus and to
// telemetry, and calls the driver's Schedule hook on
// schedule.custom_interval.
//
// Every fatal condition ends in Shutdown, which stops both loops and runs
// the hooks registered with OnShutdown.
package agent
