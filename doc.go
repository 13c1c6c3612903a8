/*
IO B-Tree

An augmented B-tree whose structural algorithm is written once and runs
over three storage backends:

1. memstore - nodes in memory, in an arena with free lists.

2. extstore - nodes in fixed size blocks of a block file, read and written
through a block cache that several trees can share.

3. serstore - an append only file written once by a bulk builder and then
opened read only.

The major components of this project:

1. btree - the tree algorithm, iterators, node navigation, the bulk
builder and the storage contract the backends implement.

2. file - block files with a free list, plain byte files and the shared
block cache.

3. codec - how values and augments become bytes.

4. errors - error kinds (invariant, storage, misuse) which carry a stack
trace.

5. iobtree-tool - builds, dumps, verifies and describes serialized tree
files.

*/
package iobtree
