// Package pipeline drives the capture of web pages through a browser session.
//
// A page is captured by a Pipeline of four named steps run in order against
// a model.PageCapture record:
//
//  1. navigate: load the URL
//  2. wait_ready: poll document.readyState until "complete" or timeout
//  3. settle: wait for script-driven rendering, then scroll to trigger lazy content
//  4. capture: resize the emulated device to the full content and screenshot it
//
// Each step fails independently. Only a failed navigation aborts a page, and
// no page failure aborts the batch. BatchProcessor runs the pipeline over a
// URL list with a single browser session that is always closed on return.
package pipeline
