package model

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownObjectType is returned when an object type name is not registered.
var ErrUnknownObjectType = errors.New("unknown object type")

// ObjectType names a kind of switch object, e.g. "VLAN" or "ROUTE_ENTRY".
type ObjectType string

// Object types known to the proxy.
const (
	TypePort                 ObjectType = "PORT"
	TypeLag                  ObjectType = "LAG"
	TypeVirtualRouter        ObjectType = "VIRTUAL_ROUTER"
	TypeNextHop              ObjectType = "NEXT_HOP"
	TypeNextHopGroup         ObjectType = "NEXT_HOP_GROUP"
	TypeRouterInterface      ObjectType = "ROUTER_INTERFACE"
	TypeACLTable             ObjectType = "ACL_TABLE"
	TypeACLEntry             ObjectType = "ACL_ENTRY"
	TypeHostif               ObjectType = "HOSTIF"
	TypeHostifTrapGroup      ObjectType = "HOSTIF_TRAP_GROUP"
	TypePolicer              ObjectType = "POLICER"
	TypeQueue                ObjectType = "QUEUE"
	TypeScheduler            ObjectType = "SCHEDULER"
	TypeSchedulerGroup       ObjectType = "SCHEDULER_GROUP"
	TypeBufferPool           ObjectType = "BUFFER_POOL"
	TypeBufferProfile        ObjectType = "BUFFER_PROFILE"
	TypeIngressPriorityGroup ObjectType = "INGRESS_PRIORITY_GROUP"
	TypeLagMember            ObjectType = "LAG_MEMBER"
	TypeFDBEntry             ObjectType = "FDB_ENTRY"
	TypeSwitch               ObjectType = "SWITCH"
	TypeHostifTrap           ObjectType = "HOSTIF_TRAP"
	TypeNeighborEntry        ObjectType = "NEIGHBOR_ENTRY"
	TypeRouteEntry           ObjectType = "ROUTE_ENTRY"
	TypeVlan                 ObjectType = "VLAN"
	TypeVlanMember           ObjectType = "VLAN_MEMBER"
	TypeBridge               ObjectType = "BRIDGE"
	TypeBridgePort           ObjectType = "BRIDGE_PORT"
)

// TypeInfo describes a registered object type.
type TypeInfo struct {
	Name ObjectType

	// Code is the numeric tag embedded in allocated object ids.
	Code uint8

	// Structured is true for entry kinds whose key is a tuple supplied by the
	// caller (route, neighbor, FDB) rather than an allocated id.
	Structured bool
}

var registry = map[ObjectType]TypeInfo{}

func register(name ObjectType, code uint8, structured bool) {
	registry[name] = TypeInfo{Name: name, Code: code, Structured: structured}
}

func init() {
	register(TypePort, 1, false)
	register(TypeLag, 2, false)
	register(TypeVirtualRouter, 3, false)
	register(TypeNextHop, 4, false)
	register(TypeNextHopGroup, 5, false)
	register(TypeRouterInterface, 6, false)
	register(TypeACLTable, 7, false)
	register(TypeACLEntry, 8, false)
	register(TypeHostif, 13, false)
	register(TypeHostifTrapGroup, 17, false)
	register(TypePolicer, 18, false)
	register(TypeQueue, 21, false)
	register(TypeScheduler, 22, false)
	register(TypeSchedulerGroup, 23, false)
	register(TypeBufferPool, 24, false)
	register(TypeBufferProfile, 25, false)
	register(TypeIngressPriorityGroup, 26, false)
	register(TypeLagMember, 27, false)
	register(TypeFDBEntry, 32, true)
	register(TypeSwitch, 33, false)
	register(TypeHostifTrap, 34, false)
	register(TypeNeighborEntry, 36, true)
	register(TypeRouteEntry, 37, true)
	register(TypeVlan, 38, false)
	register(TypeVlanMember, 39, false)
	register(TypeBridge, 57, false)
	register(TypeBridgePort, 58, false)
}

// LookupType returns the registration for name.
func LookupType(name ObjectType) (TypeInfo, error) {
	info, ok := registry[name]
	if !ok {
		return TypeInfo{}, fmt.Errorf("%w: %q", ErrUnknownObjectType, name)
	}
	return info, nil
}

// TypeByCode returns the object type registered under code.
func TypeByCode(code uint8) (ObjectType, bool) {
	for name, info := range registry {
		if info.Code == code {
			return name, true
		}
	}
	return "", false
}

// Types returns all registered type names in sorted order.
func Types() []ObjectType {
	out := make([]ObjectType, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Valid reports whether t is registered.
func (t ObjectType) Valid() bool {
	_, ok := registry[t]
	return ok
}

// Structured reports whether t is a structured-key entry kind.
func (t ObjectType) Structured() bool {
	return registry[t].Structured
}

// IsSwitch reports whether t is the switch singleton type.
func (t ObjectType) IsSwitch() bool {
	return t == TypeSwitch
}
