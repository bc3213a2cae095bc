package message

import "strconv"

// ServiceEndpoint is a service instance's network address. Instances are
// created by the registry client on discovery and destroyed when the
// registry signals removal; addresses are immutable once constructed.
type ServiceEndpoint struct {
	Host string
	Port int
}

// Addr renders the endpoint as "host:port", the form stored on the wire in
// etcd and dialed by the connection pool.
func (e ServiceEndpoint) Addr() string {
	return e.Host + ":" + strconv.Itoa(e.Port)
}

func (e ServiceEndpoint) String() string {
	return e.Addr()
}
