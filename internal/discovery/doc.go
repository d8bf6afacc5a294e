// Package discovery finds cellwatch daemons on the local network over mDNS.
//
// A daemon started with server.advertise enabled registers a
// "_cellwatch._tcp" service whose TXT records carry the tool version and
// the diagnostic device it captures from. Scanner browses for these
// services; `cellwatch discover` prints what it finds.
//
// # Usage Example
//
//	ad, err := discovery.Advertise("", 8080, map[string]string{"version": version.ToolVersion()})
//	if err != nil {
//	    return err
//	}
//	defer ad.Shutdown()
//
//	daemons, err := discovery.NewScanner().Scan(ctx)
//	for _, d := range daemons {
//	    fmt.Println(d, d.BaseURL())
//	}
package discovery
