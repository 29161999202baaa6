// Package capture provides the browser session used to render pages.
//
// Session is the small set of protocol operations the capture phases need.
// ChromeSession implements it over the Chrome DevTools Protocol via chromedp;
// tests use in-memory fakes.
package capture
