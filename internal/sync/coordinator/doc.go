// Package coordinator runs the stage workers of the sync pipeline.
//
// Stages never run inline with the call that triggered them. A trigger puts a
// task on the stage queue and returns; the coordinator owns a fixed pool of
// consumers that lease tasks from the queue and hand them to the stage
// processor:
//
//	trigger ──► queue ──► worker 1..N ──► Processor.Process ──► Ack
//
// # Delivery
//
// Each task is acknowledged after Process returns, whether the stage succeeded
// or failed: the processor has already written the outcome to the run record,
// so retrying a failed stage would only repeat it. A task is redelivered only
// when its worker never acknowledged it, for example after a crash. The
// processor skips redelivered tasks whose run is already terminal.
//
// # Timeouts
//
// Every stage runs under pipeline.stageTimeout. The timeout is shorter than
// the staleness failAfter threshold, so a stage that hits it records its own
// failure before the staleness monitor would.
//
// # Lifecycle
//
//	c := coordinator.New(processor, q, cfg)
//	go c.Start(ctx)
//	// ... serve ...
//	c.Stop()
//
// Stop cancels the workers and waits for in-flight stages to return.
package coordinator
