// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package portapi

// Blueprint is a type definition in the remote catalog. The core does not
// own blueprint schema; Client.EnsureBlueprint (pkg/portclient) writes a
// Blueprint's RelationDecls to Port. Kind ordering (pkg/kindgraph) is
// derived from the PAC's relation mappings, not from this type.
type Blueprint struct {
	Identifier string
	Relations  []RelationDecl
}

// RelationDecl declares that entities of this blueprint may relate to
// entities of Target via the named relation.
type RelationDecl struct {
	Name   string
	Target string
	Many   bool
}
