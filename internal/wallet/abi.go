package wallet

// reportRegistryABI is the subset of the GalamseyReports contract the backend
// calls. submitReportFor is the relayed entry point: the transaction sender
// pays gas and reporter is credited the reward and the report count.
const reportRegistryABI = `[
  {"type":"function","name":"submitReportFor","stateMutability":"nonpayable",
   "inputs":[{"name":"reportHash","type":"bytes32"},{"name":"reporter","type":"address"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getRewards","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getReportCount","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"isReportSubmitted","stateMutability":"view",
   "inputs":[{"name":"reportHash","type":"bytes32"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"rewardPerReport","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"ReportSubmitted","anonymous":false,
   "inputs":[
     {"name":"reporter","type":"address","indexed":true},
     {"name":"reportHash","type":"bytes32","indexed":true},
     {"name":"timestamp","type":"uint256","indexed":false},
     {"name":"rewardEarned","type":"uint256","indexed":false}]}
]`

const (
	methodSubmitReportFor   = "submitReportFor"
	methodGetRewards        = "getRewards"
	methodGetReportCount    = "getReportCount"
	methodIsReportSubmitted = "isReportSubmitted"
	methodRewardPerReport   = "rewardPerReport"
	eventReportSubmitted    = "ReportSubmitted"
)
