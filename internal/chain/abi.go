package chain

const registryABIJSON = `[
  {"type":"function","name":"botCount","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"accountOf","stateMutability":"view","inputs":[{"name":"botId","type":"uint256"}],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"tokenOf","stateMutability":"view","inputs":[{"name":"botId","type":"uint256"}],
   "outputs":[{"name":"","type":"address"}]}
]`

const accountABIJSON = `[
  {"type":"function","name":"paused","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"lifecycleState","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"nonce","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"riskParams","stateMutability":"view","inputs":[],
   "outputs":[{"name":"maxAmountInPerTrade","type":"uint256"},{"name":"minSecondsBetweenTrades","type":"uint256"}]},

  {"type":"event","name":"TradeExecuted","anonymous":false,"inputs":[
    {"name":"tokenIn","type":"address","indexed":false},
    {"name":"tokenOut","type":"address","indexed":false},
    {"name":"amountIn","type":"uint256","indexed":false},
    {"name":"amountOut","type":"uint256","indexed":false},
    {"name":"nonce","type":"uint256","indexed":false}]},
  {"type":"event","name":"LifecycleStateChanged","anonymous":false,"inputs":[
    {"name":"previousState","type":"uint8","indexed":false},
    {"name":"newState","type":"uint8","indexed":false}]},
  {"type":"event","name":"PausedUpdated","anonymous":false,"inputs":[
    {"name":"paused","type":"bool","indexed":false}]},
  {"type":"event","name":"RiskParamsUpdated","anonymous":false,"inputs":[
    {"name":"maxAmountInPerTrade","type":"uint256","indexed":false},
    {"name":"minSecondsBetweenTrades","type":"uint256","indexed":false}]},
  {"type":"event","name":"Deposited","anonymous":false,"inputs":[
    {"name":"from","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"Withdrawn","anonymous":false,"inputs":[
    {"name":"to","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]}
]`

const erc20ABIJSON = `[
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"string"}]}
]`
