/*
Package btree is an augmented B-tree whose algorithm is written once
against a storage contract (Store). Backends decide where the nodes live:
package memstore keeps them in memory, extstore in fixed size blocks behind
a shared block cache, serstore in an append only file.

A Tree is built from a store and a Config:

	tree, err := btree.New[uint64](store, btree.Config[uint64, uint64, btree.Empty]{
		Key:     btree.Identity[uint64],
		Compare: btree.Ordered[uint64],
	})

Every node carries an augment computed by Config.Augment from the node's
content. The parent stores it next to the child handle together with the
child's minimum key, and the tree recomputes every augment from a changed
node up to the root before an operation returns. Augments are read back
through Node, which navigates from the root:

	root, err := tree.Root()
	for i := 0; i < root.Count(); i++ {
		a, err := root.Augment(i)
		...
	}

Keys need not be unique. Equal keys keep their insertion order and Find
returns the first of them.

None of the types here are safe for concurrent use. A tree and its store
belong to one goroutine at a time.
*/
package btree
