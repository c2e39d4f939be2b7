// Package dedupe tracks message ids already applied to a conversation view
// so duplicate realtime deliveries never produce visible duplicate messages.
package dedupe
