package ledger

// ticketABI covers the parts of the ticket contract this service calls.
const ticketABI = `[
  {"type":"function","name":"getTicket","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[
     {"name":"owner","type":"address"},
     {"name":"tier","type":"string"},
     {"name":"originalPrice","type":"uint256"},
     {"name":"used","type":"bool"},
     {"name":"eventId","type":"uint256"},
     {"name":"purchaseTimestamp","type":"uint256"},
     {"name":"transferLockUntil","type":"uint256"}
   ]},
  {"type":"function","name":"eventDate","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"markAsUsed","stateMutability":"nonpayable",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[]},
  {"type":"event","name":"TicketUsed","anonymous":false,
   "inputs":[
     {"name":"tokenId","type":"uint256","indexed":true},
     {"name":"usedAt","type":"uint256","indexed":false}
   ]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[
     {"name":"from","type":"address","indexed":true},
     {"name":"to","type":"address","indexed":true},
     {"name":"tokenId","type":"uint256","indexed":true}
   ]}
]`
